// =============================================================================
// 📦 CacheVal 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CACHEVAL").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 CacheVal 评测代理的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Cache 缓存引擎配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis 远端缓存层配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 语料库数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Upstream 上游生成器配置
	Upstream UpstreamConfig `yaml:"upstream" env:"UPSTREAM"`

	// Traffic 流量驱动配置
	Traffic TrafficConfig `yaml:"traffic" env:"TRAFFIC"`

	// Events 事件日志配置
	Events EventsConfig `yaml:"events" env:"EVENTS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 限流 RPS
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// API Keys（为空时跳过认证）
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 是否允许通过 query 参数传递 API Key
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// CacheConfig 缓存引擎配置
type CacheConfig struct {
	// 条目容量上限
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// 字节预算（0 表示不限制）
	ByteBudget int64 `yaml:"byte_budget" env:"BYTE_BUDGET"`
	// 淘汰策略: lru, lfu, ttl
	Policy string `yaml:"policy" env:"POLICY"`
	// ttl 策略的条目存活时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 键派生模式: text（归一化问题文本）, id（语料库 ID）
	KeyMode string `yaml:"key_mode" env:"KEY_MODE"`
	// 是否启用 Redis 远端缓存层
	RemoteEnabled bool `yaml:"remote_enabled" env:"REMOTE_ENABLED"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// UpstreamConfig 上游生成器配置
type UpstreamConfig struct {
	// 模式: simulated, http
	Mode string `yaml:"mode" env:"MODE"`
	// http 模式的后端地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 并发上限（同时在途的上游调用数）
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// simulated 模式的固定延迟
	Latency time.Duration `yaml:"latency" env:"LATENCY"`
	// simulated 模式的故障注入概率 [0,1]
	ErrorRate     float64 `yaml:"error_rate" env:"ERROR_RATE"`
	RateLimitRate float64 `yaml:"rate_limit_rate" env:"RATE_LIMIT_RATE"`
	// simulated 模式的随机种子
	Seed int64 `yaml:"seed" env:"SEED"`
	// tiktoken 编码名（用于 token 统计）
	Encoding string `yaml:"encoding" env:"ENCODING"`
}

// TrafficConfig 流量驱动配置
type TrafficConfig struct {
	// 到达分布: uniform, poisson
	Mode string `yaml:"mode" env:"MODE"`
	// 回路模式: open（按速率投递）, closed（固定并发）
	Loop string `yaml:"loop" env:"LOOP"`
	// open 模式的请求速率（req/s）
	Rate float64 `yaml:"rate" env:"RATE"`
	// closed 模式的并发 worker 数
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 请求总数
	Requests int `yaml:"requests" env:"REQUESTS"`
	// 问题抽样上限（0 表示整个语料库）
	MaxQuestions int `yaml:"max_questions" env:"MAX_QUESTIONS"`
	// 随机种子（问题选择与到达间隔）
	Seed int64 `yaml:"seed" env:"SEED"`
}

// EventsConfig 事件日志配置
type EventsConfig struct {
	// JSONL 运行产物路径（为空时不落盘）
	LogFile string `yaml:"log_file" env:"LOG_FILE"`
	// 实时事件流的每连接缓冲区
	StreamBuffer int `yaml:"stream_buffer" env:"STREAM_BUFFER"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "CACHEVAL",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证服务器配置
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	// 验证缓存配置
	if c.Cache.Capacity <= 0 {
		errs = append(errs, "cache capacity must be positive")
	}
	if c.Cache.ByteBudget < 0 {
		errs = append(errs, "cache byte_budget must not be negative")
	}
	switch c.Cache.Policy {
	case "lru", "lfu", "ttl":
	default:
		errs = append(errs, fmt.Sprintf("unknown cache policy %q", c.Cache.Policy))
	}
	if c.Cache.Policy == "ttl" && c.Cache.TTL <= 0 {
		errs = append(errs, "cache ttl must be positive for the ttl policy")
	}
	switch c.Cache.KeyMode {
	case "text", "id":
	default:
		errs = append(errs, fmt.Sprintf("unknown cache key_mode %q", c.Cache.KeyMode))
	}

	// 验证上游配置
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream timeout must be positive")
	}
	if c.Upstream.MaxConcurrent <= 0 {
		errs = append(errs, "upstream max_concurrent must be positive")
	}
	switch c.Upstream.Mode {
	case "simulated", "http":
	default:
		errs = append(errs, fmt.Sprintf("unknown upstream mode %q", c.Upstream.Mode))
	}

	// 验证流量配置
	switch c.Traffic.Mode {
	case "uniform", "poisson":
	default:
		errs = append(errs, fmt.Sprintf("unknown traffic mode %q", c.Traffic.Mode))
	}
	switch c.Traffic.Loop {
	case "open", "closed":
	default:
		errs = append(errs, fmt.Sprintf("unknown traffic loop %q", c.Traffic.Loop))
	}
	if c.Traffic.Loop == "open" && c.Traffic.Rate <= 0 {
		errs = append(errs, "traffic rate must be positive in open loop mode")
	}
	if c.Traffic.Loop == "closed" && c.Traffic.Concurrency <= 0 {
		errs = append(errs, "traffic concurrency must be positive in closed loop mode")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// URL 返回 golang-migrate 使用的数据库 URL
func (d *DatabaseConfig) URL() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"mysql://%s:%s@tcp(%s:%d)/%s",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return "sqlite3://" + d.Name
	default:
		return ""
	}
}
