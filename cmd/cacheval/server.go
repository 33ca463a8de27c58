package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/cacheval/api/handlers"
	"github.com/BaSui01/cacheval/cache"
	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/corpus"
	"github.com/BaSui01/cacheval/events"
	"github.com/BaSui01/cacheval/internal/database"
	"github.com/BaSui01/cacheval/internal/metrics"
	"github.com/BaSui01/cacheval/internal/server"
	"github.com/BaSui01/cacheval/proxy"
	"github.com/BaSui01/cacheval/scorer"
	"github.com/BaSui01/cacheval/upstream"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 CacheVal 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	pool        *database.PoolManager
	store       *corpus.Store
	engine      *cache.Engine
	tiered      *cache.Tiered
	redisClient *redis.Client
	generator   upstream.Generator
	scores      *scorer.Scorer
	eventLog    *events.Log
	broadcaster *events.Broadcaster
	router      *proxy.Router

	// Handlers
	healthHandler *handlers.HealthHandler
	answerHandler *handlers.AnswerHandler
	statsHandler  *handlers.StatsHandler
	eventsHandler *handlers.EventsHandler
	reportHandler *handlers.ReportHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 与指标同步生命周期管理
	rateLimiterCancel context.CancelFunc
	gaugeSyncCancel   context.CancelFunc

	// 上一次同步时缓存引擎报告的累计淘汰数
	lastEvictions uint64

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	if db != nil {
		s.store = corpus.NewStore(db, logger)
	}
	return s
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("cacheval", nil, s.logger)

	// 2. 初始化核心组件（缓存、上游、打分、事件）
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	// 3. 初始化 Handlers
	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 6. 后台同步缓存与数据库连接池指标
	s.startGaugeSync()

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("cache_policy", s.cfg.Cache.Policy),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initComponents 初始化缓存引擎、上游生成器、打分器与事件总线
func (s *Server) initComponents() error {
	// 缓存引擎 + 淘汰策略
	policy, err := cache.NewPolicy(s.cfg.Cache.Policy, s.cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("create eviction policy: %w", err)
	}
	s.engine = cache.NewEngine(cache.Config{
		Capacity:   s.cfg.Cache.Capacity,
		ByteBudget: s.cfg.Cache.ByteBudget,
	}, policy, s.logger)

	// 可选的 Redis 远端缓存层
	var remote *cache.RedisTier
	if s.cfg.Cache.RemoteEnabled {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
		remote, err = cache.NewRedisTier(context.Background(), s.redisClient, s.cfg.Cache.Capacity, s.logger)
		if err != nil {
			return fmt.Errorf("create redis tier: %w", err)
		}
	}
	s.tiered = cache.NewTiered(s.engine, remote, s.logger)

	// 上游生成器（simulated 或 http）
	s.generator, err = upstream.New(s.cfg.Upstream, s.logger)
	if err != nil {
		return fmt.Errorf("create upstream generator: %w", err)
	}

	// 打分器需要语料库
	if s.store == nil {
		return fmt.Errorf("corpus database is required")
	}
	s.scores = scorer.New(s.store, s.logger)

	// 事件日志与实时广播
	s.eventLog = events.NewLog()
	s.broadcaster = events.NewBroadcaster(s.cfg.Events.StreamBuffer, s.logger)

	// 请求路由器
	s.router = proxy.NewRouter(
		s.tiered,
		s.store,
		s.scores,
		s.generator,
		s.eventLog,
		s.broadcaster,
		s.metricsCollector,
		proxy.Options{
			KeyMode:         cache.KeyMode(s.cfg.Cache.KeyMode),
			UpstreamTimeout: s.cfg.Upstream.Timeout,
			MaxConcurrent:   s.cfg.Upstream.MaxConcurrent,
		},
		s.logger,
	)

	s.logger.Info("Components initialized",
		zap.String("policy", s.engine.Stats().Policy),
		zap.String("upstream", s.generator.Name()),
		zap.Bool("remote_cache", remote != nil),
	)
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	// 健康检查 handler
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.pool != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("database", s.pool.Ping))
	}
	if s.redisClient != nil {
		rdb := s.redisClient
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	s.answerHandler = handlers.NewAnswerHandler(s.router, s.logger)
	s.statsHandler = handlers.NewStatsHandler(s.router, s.eventLog, s.logger)
	s.eventsHandler = handlers.NewEventsHandler(s.eventLog, s.broadcaster, s.logger)
	s.reportHandler = handlers.NewReportHandler(s.scores, s.router, s.eventLog, s.cfg.Events.LogFile, s.logger)

	s.logger.Info("Handlers initialized")
	return nil
}

// SetPoolManager 注入数据库连接池管理器（用于就绪检查与连接指标）
func (s *Server) SetPoolManager(pm *database.PoolManager) {
	s.pool = pm
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// API 路由
	// ========================================
	mux.HandleFunc("/api/v1/answer", s.answerHandler.HandleAnswer)
	mux.HandleFunc("/api/v1/stats", s.statsHandler.HandleStats)
	mux.HandleFunc("/api/v1/events", s.eventsHandler.HandleEvents)
	mux.HandleFunc("/api/v1/events/stream", s.eventsHandler.HandleStream)
	mux.HandleFunc("/api/v1/report", s.reportHandler.HandleReport)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout, // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                      // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 📈 指标同步
// =============================================================================

// startGaugeSync 周期性地把缓存条目数与连接池状态同步到 Prometheus gauge
func (s *Server) startGaugeSync() {
	ctx, cancel := context.WithCancel(context.Background())
	s.gaugeSyncCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.syncGauges()
			}
		}
	}()
}

// syncGauges 采样缓存引擎与连接池状态并写入 Prometheus。
// 淘汰数是引擎的累计计数，按与上次采样的差值上报。
func (s *Server) syncGauges() {
	stats := s.engine.Stats()
	s.metricsCollector.SetCacheEntries("local", stats.Entries)
	if stats.Evictions > s.lastEvictions {
		s.metricsCollector.AddCacheEvictions(stats.Policy, stats.Evictions-s.lastEvictions)
	}
	s.lastEvictions = stats.Evictions

	if s.pool != nil {
		poolStats := s.pool.Stats()
		s.metricsCollector.RecordDBConnections("corpus", poolStats.OpenConnections, poolStats.Idle)
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	// 使用 httpManager 的 WaitForShutdown（它会监听信号）
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.gaugeSyncCancel != nil {
		s.gaugeSyncCancel()
	}

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭事件广播与远端连接
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Redis client close error", zap.Error(err))
		}
	}

	// 4. 落盘事件日志（配置了产物路径时）
	if s.eventLog != nil && s.cfg.Events.LogFile != "" {
		if err := s.eventLog.WriteJSONL(s.cfg.Events.LogFile); err != nil {
			s.logger.Error("Event log persist error", zap.Error(err))
		}
	}

	// 5. 关闭数据库连接池
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database pool close error", zap.Error(err))
		}
	}

	// 6. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
