// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package traffic 按配置的到达分布回放合成负载。
//
// 两种回路模式:
//   - closed: 固定 worker 并发,请求背靠背发出
//   - open: 按速率投递,uniform 用令牌桶限速,poisson 用指数到达间隔
//
// 问题序列与到达计划均由种子确定,同一配置产生同一运行。
package traffic
