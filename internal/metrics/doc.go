/*
包 metrics 提供基于 Prometheus 的引擎指标采集能力，覆盖
连接、TLS 握手、HTTP 请求与工作池四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
由管理端口的 /metrics 暴露。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 指标。nil Collector 的所有记录方法均为空操作。

# 主要能力

  - 连接指标：接受/拒绝计数、活跃连接 Gauge、TLS 握手结果。
  - HTTP 指标：请求总数、请求耗时、请求/响应大小，按 method/status
    分组，状态码归类为 1xx..5xx，method 标签限制为常见方法。
  - 协议错误：按状态码统计被拒绝的请求。
  - 引擎指标：任务队列深度、忙碌 worker 数。
*/
package metrics
