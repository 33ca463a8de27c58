// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package upstream 实现答案生成后端。
//
// 两种实现:
//   - Simulated: 确定性模拟后端。答案文本是问题的纯函数,延迟固定,
//     可按概率注入错误与限流故障,用于可复现的评测运行
//   - HTTPGenerator: 调用真实 HTTP 后端,状态码映射为统一错误码
//
// 附带 TokenCounter,基于 tiktoken 做 token 统计,编码数据下载失败时
// 退化为字节估算。
package upstream
