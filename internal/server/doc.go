/*
包 server 实现持久连接 HTTP/1.1 服务引擎的连接接收、调度与关闭协调，
以及独立的管理端口服务器。

# 概述

Engine 拥有监听套接字：acceptor 以带超时的 accept 轮询关闭标志，
每个新连接被包装为 Task 放入 pool.TaskQueue，由固定数量的 worker
取出后运行连接处理循环（读请求 → 路由 → 发送），直到连接非持久
或关闭标志置位。

# 核心类型

  - Engine：acceptor + 任务队列 + worker 池，提供 Listen/Serve/Shutdown。
  - Task：一个已接受、尚未服务的连接，附带连接 ID 与接受时间。
  - Config：监听地址、backlog、worker 数、超时与请求限制。
  - Manager：管理端口 net/http 服务器，暴露 /metrics 与 /healthz。

# 关闭顺序

关闭标志只会被置位一次（信号、stdin 命令、ctx 取消或内部故障），
随后 Serve 依次：关闭监听 → 唤醒全部 worker → 等待 worker 退出 →
关闭队列中尚未服务的连接 → 关闭队列 → 释放 TLS 配置。
*/
package server
