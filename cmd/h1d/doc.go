/*
Package main 提供 h1d 服务端程序入口。

# 概述

cmd/h1d 是持久连接 HTTP/1.1 引擎的可执行入口，提供 serve、version、
health 与 gencert 子命令。程序支持 YAML 配置文件与 H1D_ 环境变量、
结构化日志（zap）、Prometheus 指标以及 OpenTelemetry 导出。

# 主要能力

  - serve：启动引擎与管理端口（/metrics、/healthz），在 stdin 输入
    shutdown 或收到 SIGINT/SIGTERM 时优雅关闭
  - health：请求 /health，支持 https 与 --insecure
  - gencert：为 tls.cert_file / tls.key_file 生成自签名证书
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
