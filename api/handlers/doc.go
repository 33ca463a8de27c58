// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package handlers 实现 CacheVal HTTP API 的处理器。
//
// 路由一览:
//   - POST /api/v1/answer        答案请求(缓存优先)
//   - GET  /api/v1/stats         缓存与请求统计
//   - GET  /api/v1/events        事件日志快照
//   - GET  /api/v1/events/stream 实时事件流 (WebSocket)
//   - POST /api/v1/report        运行报告
//   - GET  /health /healthz /ready /version
package handlers
