// 版权所有 2025 CacheVal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 CacheVal 服务端程序入口。

# 概述

cmd/cacheval 是 CacheVal 缓存代理与评测回路的可执行入口，提供
HTTP API 服务、进程内评测运行、语料导入、数据库迁移、健康检查和
版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志（zap）、
Prometheus 指标采集与 OpenTelemetry 链路追踪。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - statusRecorder    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动缓存代理）、run（进程内评测运行）、
    load（CSV 语料导入）、migrate（数据库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    RequestLogger、MetricsMiddleware、CORS、RateLimiter（基于 IP）、
    APIKeyAuth（X-API-Key / query 参数）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 落盘事件日志 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
