// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package scorer 评估生成答案的质量并生成运行报告。
//
// 质量指标为 TF-IDF 余弦相似度,词项空间取 unigram + bigram,
// 去停用词后在两篇文档上计算。得分与生成答案一起回写语料库。
//
// BuildReport 聚合事件日志与缓存统计,输出命中率、分结局平均延迟、
// token 总量与平均质量得分。
package scorer
