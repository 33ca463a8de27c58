// 版权所有 2025 CacheVal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供评测代理的缓存引擎：键归一化、容量与字节预算控制、
可插拔淘汰策略，以及可选的 Redis 远端缓存层。

# 概述

缓存引擎持有 key→entry 映射，是整个评测代理中唯一的共享可变状态。
所有变更（插入、淘汰、访问簿记）都在引擎互斥锁内串行完成，
上游调用绝不发生在临界区内。

# 核心类型

  - Engine：本地缓存引擎，提供 Lookup/Insert/Stats/Flush，
    容量与字节预算在每次操作完成后恒成立。
  - Policy：淘汰策略接口，内置 LRU（默认）、LFU、TTL 三种实现，
    平局按最低访问次数、再按最早创建时间决胜，保证淘汰可复现。
  - Tiered：本地 Engine + Redis 远端层的两级组合，远端命中自动
    回填本地；远端层复刻 hash + list 的 LRU 结构。

# 键派生

两种派生模式共享同一归一化规则（大小写折叠 + 空白折叠），
归一化后取 sha256 的前 16 字节十六进制。相同逻辑问题恒产生
相同键。

# 插入竞争语义

并发未命中对同一键的重复插入采用 first-writer-wins：
后到的插入是 no-op，已缓存的应答不会被覆盖。
*/
package cache
