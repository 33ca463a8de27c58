// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package events 记录每请求的观测事件。
//
// 每个到达路由器的请求恰好产生一条 RequestEvent,包括失败的请求。
// 三个组成部分:
//   - Log: 内存追加日志,Snapshot 非破坏性读取,可随时落盘为 JSONL
//   - Broadcaster: 实时事件扇出,发布永不阻塞,慢订阅者丢事件
//   - RequestEvent: HIT / MISS / ERROR 结局加延迟、token 等字段
package events
