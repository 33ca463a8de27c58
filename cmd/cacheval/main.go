// =============================================================================
// CacheVal 主入口
// =============================================================================
// 完整服务入口点，包含缓存代理 HTTP 服务、评测运行、语料导入、
// 健康检查与 Prometheus 指标
//
// 使用方法:
//
//	cacheval serve                        # 启动缓存代理服务
//	cacheval serve --config config.yaml   # 指定配置文件
//	cacheval run --config config.yaml     # 进程内评测运行（流量驱动 + 报告）
//	cacheval load --csv data.csv          # 导入问答语料
//	cacheval version                      # 显示版本信息
//	cacheval health                       # 健康检查
//	cacheval migrate up                   # 运行数据库迁移
//	cacheval migrate down                 # 回滚最后一次迁移
//	cacheval migrate status               # 查看迁移状态
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/internal/database"
	"github.com/BaSui01/cacheval/internal/metrics"
	"github.com/BaSui01/cacheval/internal/telemetry"
	"github.com/BaSui01/cacheval/proxy"
	"github.com/BaSui01/cacheval/scorer"
	"github.com/BaSui01/cacheval/traffic"
	"github.com/BaSui01/cacheval/upstream"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "run":
		runEval(os.Args[2:])
	case "load":
		runLoad(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	// 解析命令行参数
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	// 初始化日志
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting CacheVal",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	// 初始化语料库数据库
	db, err := corpus.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect corpus database", zap.Error(err))
	}

	pm, err := database.NewPoolManager(db, database.PoolConfig{
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to configure database pool", zap.Error(err))
	}

	store := corpus.NewStore(db, logger)
	if err := store.AutoMigrate(); err != nil {
		logger.Error("Corpus auto-migrate failed", zap.Error(err))
	}

	// 创建并启动服务器
	srv := NewServer(cfg, db, logger)
	srv.SetPoolManager(pm)

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// 等待关闭信号
	srv.WaitForShutdown()

	if otelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}

	logger.Info("CacheVal stopped")
}

// =============================================================================
// 🏃 run 命令（进程内评测运行）
// =============================================================================

func runEval(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	requests := fs.Int("requests", 0, "Override total request count")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *requests > 0 {
		cfg.Traffic.Requests = *requests
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting evaluation run",
		zap.String("version", Version),
		zap.String("traffic_mode", cfg.Traffic.Mode),
		zap.String("loop", cfg.Traffic.Loop),
		zap.Int("requests", cfg.Traffic.Requests),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 语料库
	db, err := corpus.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect corpus database", zap.Error(err))
	}
	store := corpus.NewStore(db, logger)
	if err := store.AutoMigrate(); err != nil {
		logger.Fatal("Corpus auto-migrate failed", zap.Error(err))
	}

	ids, err := store.IDs(ctx, cfg.Traffic.MaxQuestions)
	if err != nil {
		logger.Fatal("Failed to list question ids", zap.Error(err))
	}
	if len(ids) == 0 {
		logger.Fatal("Corpus is empty, run 'cacheval load' first")
	}

	// 缓存引擎
	policy, err := cache.NewPolicy(cfg.Cache.Policy, cfg.Cache.TTL)
	if err != nil {
		logger.Fatal("Invalid eviction policy", zap.Error(err))
	}
	engine := cache.NewEngine(cache.Config{
		Capacity:   cfg.Cache.Capacity,
		ByteBudget: cfg.Cache.ByteBudget,
	}, policy, logger)
	tiered := cache.NewTiered(engine, nil, logger)

	// 上游生成器与打分器
	gen, err := upstream.New(cfg.Upstream, logger)
	if err != nil {
		logger.Fatal("Failed to create upstream generator", zap.Error(err))
	}
	scores := scorer.New(store, logger)

	// 事件日志与路由器
	eventLog := events.NewLog()
	collector := metrics.NewCollector("cacheval", nil, logger)
	router := proxy.NewRouter(tiered, store, scores, gen, eventLog, nil, collector,
		proxy.Options{
			KeyMode:         cache.KeyMode(cfg.Cache.KeyMode),
			UpstreamTimeout: cfg.Upstream.Timeout,
			MaxConcurrent:   cfg.Upstream.MaxConcurrent,
		}, logger)

	// 流量驱动
	driver := traffic.NewDriver(cfg.Traffic, func(ctx context.Context, questionID uint) error {
		_, err := router.Handle(ctx, questionID)
		return err
	}, logger)

	runStats, err := driver.Run(ctx, ids)
	if err != nil {
		logger.Fatal("Evaluation run failed", zap.Error(err))
	}

	logger.Info("Evaluation run finished",
		zap.Int("requests", runStats.Requests),
		zap.Int("errors", runStats.Errors),
		zap.Duration("duration", runStats.Duration),
	)

	// 落盘事件日志
	if cfg.Events.LogFile != "" {
		if err := eventLog.WriteJSONL(cfg.Events.LogFile); err != nil {
			logger.Error("Event log persist error", zap.Error(err))
		} else {
			logger.Info("Event log written", zap.String("path", cfg.Events.LogFile))
		}
	}

	// 汇总报告写到 stdout
	report, err := scores.BuildReport(context.Background(), eventLog.Snapshot(), router.Stats())
	if err != nil {
		logger.Fatal("Failed to build report", zap.Error(err))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("Failed to encode report", zap.Error(err))
	}
}

// =============================================================================
// 📥 load 命令（语料导入）
// =============================================================================

func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	csvPath := fs.String("csv", "", "Path to the question/answer CSV file")
	limit := fs.Int("limit", 0, "Maximum rows to import (0 = all)")
	fs.Parse(args)

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cacheval load --csv <path> [--limit N] [--config x.yaml]")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	db, err := corpus.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect corpus database", zap.Error(err))
	}
	store := corpus.NewStore(db, logger)
	if err := store.AutoMigrate(); err != nil {
		logger.Fatal("Corpus auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := store.LoadCSV(ctx, *csvPath, *limit)
	if err != nil {
		logger.Fatal("CSV import failed", zap.Error(err))
	}

	fmt.Printf("Imported %d question/answer pairs\n", n)
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("CacheVal %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`CacheVal - Caching proxy and evaluation loop for LLM answer generation

Usage:
  cacheval <command> [options]

Commands:
  serve     Start the caching proxy server
  run       Run an in-process evaluation (traffic driver + report)
  load      Import question/answer pairs from CSV
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve' and 'run':
  --config <path>   Path to configuration file (YAML)

Options for 'load':
  --csv <path>      Path to the CSV file (required)
  --limit <n>       Maximum rows to import (0 = all)

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  cacheval serve --config config.yaml
  cacheval run --config config.yaml --requests 500
  cacheval load --csv qa_pairs.csv --limit 1000
  cacheval migrate up
  cacheval health --addr http://localhost:8080
  cacheval version`)
}

// =============================================================================
// 🔧 配置与日志初始化
// =============================================================================

// loadConfig 加载并验证配置，失败时直接退出
func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	// 构建 logger
	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
