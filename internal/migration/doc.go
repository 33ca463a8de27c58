// 版权所有 2025 CacheVal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理语料库 qa_pairs 表的 Schema 迁移，基于
golang-migrate，支持 PostgreSQL、MySQL 与 SQLite 三种后端。

# 核心类型

  - Migrator：迁移操作接口，包含 Up/Down/DownAll/Goto/Force/
    Version/Status/Info/Close。
  - SchemaMigrator：基于 golang-migrate 的实现，SQL 文件通过
    embed.FS 按方言内嵌，二进制自带全部迁移。
  - Config：后端类型、连接 URL 与迁移记录表名。
  - CLI：cacheval migrate 子命令的输出层。

# 主要能力

  - 方言适配：DatabaseType 选择内嵌 SQL 目录与数据库驱动，
    SQLite 走纯 Go 的 modernc 驱动。
  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL 从应用配置或显式 URL 创建迁移器。
  - 辅助工具：ParseDatabaseType 归一化类型字符串，
    BuildDatabaseURL 按方言拼接连接 URL。
*/
package migration
