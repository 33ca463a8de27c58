// 版权所有 2025 CacheVal Authors
//
// 根据 Apache License 2.0 许可证授权。

// Package corpus 管理问答语料库的持久化存储。
//
// 语料库是评测运行的数据源:每条记录包含问题文本、数据集给出的参考答案,
// 以及运行期间回写的生成答案、质量得分与重复命中计数。
//
// 核心组件:
//   - Store: 基于 GORM 的读写接口,支持 PostgreSQL / MySQL / SQLite
//   - LoadCSV: 从 CSV 数据集批量导入问答对,自动识别表头列名
//
// 使用示例:
//
//	db, err := corpus.Open(cfg.Database, logger)
//	store := corpus.NewStore(db, logger)
//	n, err := store.LoadCSV(ctx, "dataset.csv", 1000)
package corpus
