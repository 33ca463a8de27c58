// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package metrics 提供 Prometheus 指标收集。
//
// 覆盖四类指标:HTTP 请求、答案请求结局(HIT/MISS/ERROR)、
// 缓存(命中/未命中/淘汰/条目数)与上游生成调用(次数/延迟/token)。
// 指标通过独立端口上的 /metrics 暴露。
package metrics
