// 版权所有 2025 CacheVal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 管理语料库数据库的连接池。语料库保存问答对、生成
答案与质量评分，代理的写回路径与就绪检查都经过这里。

# 核心类型

  - PoolManager：把 PoolConfig 应用到 GORM 底层的 sql.DB，
    提供 Ping()、Stats()、Close() 三个生命周期方法。
  - PoolConfig：连接池参数，包含空闲与打开连接上限、连接
    生命周期、空闲超时与健康探测间隔。

# 主要能力

  - 池参数调优：MaxIdleConns/MaxOpenConns/ConnMaxLifetime 控制
    写回路径的并发与连接复用。
  - 健康探测：后台定时 PingContext，结果写入 zap 日志，
    Close 时停止。
  - 指标来源：Stats() 返回 sql.DBStats，由服务器的指标同步
    循环导出到 Prometheus。
*/
package database
