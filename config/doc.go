/*
包 config 提供 CacheVal 评测代理的统一配置加载能力。

# 概述

配置来源按优先级合并：默认值 → YAML 文件 → 环境变量。
环境变量键由前缀与结构体 env tag 拼接而成，例如
CACHEVAL_CACHE_CAPACITY 覆盖 Config.Cache.Capacity。

# 核心类型

  - Config：完整配置树，覆盖服务器、缓存引擎、Redis 远端层、
    语料库数据库、上游生成器、流量驱动、事件日志与遥测。
  - Loader：Builder 风格的加载器，支持自定义配置路径、
    环境变量前缀与校验器。

# 识别的评测参数

缓存容量、字节预算、淘汰策略（lru/lfu/ttl）、键派生模式、
上游超时与并发上限、流量到达分布与速率，均为可调评测参数，
默认值对应基线场景（容量 50、LRU、精确键）。
*/
package config
