// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package proxy 实现缓存优先的请求路由。
//
// 处理流程:解析问题文本,派生缓存键,命中直接返回;未命中时按键合并
// 并发请求,共享一次上游调用。关键保证:
//   - 同键并发未命中只产生一次上游调用 (singleflight)
//   - 上游调用在独立于发起者取消的上下文里执行,单个等待者退出
//     不影响其他等待者
//   - 失败的调用绝不写入缓存,下一次请求重新回源
//   - 每个请求恰好产生一条事件,错误也不例外
//
// 上游并发由信号量限制,单次调用受超时约束。
package proxy
