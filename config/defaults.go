// =============================================================================
// 📦 CacheVal 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Cache:     DefaultCacheConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Upstream:  DefaultUpstreamConfig(),
		Traffic:   DefaultTrafficConfig(),
		Events:    DefaultEventsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultCacheConfig 返回默认缓存配置
// 容量默认 50 条，对应评测基线；字节预算默认关闭
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity:      50,
		ByteBudget:    0,
		Policy:        "lru",
		TTL:           5 * time.Minute,
		KeyMode:       "text",
		RemoteEnabled: false,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "cacheval",
		Password:        "",
		Name:            "cacheval",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultUpstreamConfig 返回默认上游配置
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		Mode:          "simulated",
		Timeout:       30 * time.Second,
		MaxConcurrent: 8,
		Latency:       time.Second,
		ErrorRate:     0,
		RateLimitRate: 0,
		Seed:          42,
		Encoding:      "cl100k_base",
	}
}

// DefaultTrafficConfig 返回默认流量配置
func DefaultTrafficConfig() TrafficConfig {
	return TrafficConfig{
		Mode:         "uniform",
		Loop:         "closed",
		Rate:         0.5,
		Concurrency:  4,
		Requests:     50,
		MaxQuestions: 1000,
		Seed:         42,
	}
}

// DefaultEventsConfig 返回默认事件日志配置
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		LogFile:      "",
		StreamBuffer: 64,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "cacheval",
		SampleRate:   1.0,
	}
}
