package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
	"weylus/internal/core/services"
	httphandlers "weylus/internal/handlers/http"
	"weylus/internal/infrastructure/keepalive"
	"weylus/internal/infrastructure/middleware"
	"weylus/internal/infrastructure/monitoring"
	"weylus/internal/infrastructure/protocol"
	"weylus/internal/infrastructure/render"
	"weylus/internal/infrastructure/repositories"
	"weylus/internal/infrastructure/transport"
	"weylus/pkg/config"
	"weylus/pkg/logger"
	"weylus/pkg/tracing"
	"weylus/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	url        string
	accessCode string
	logLevel   string
	connect    bool
	issueToken string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("weylus-client", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	flagSet.StringVar(&opts.url, "url", "", "host websocket URL, e.g. ws://192.168.1.10:1701/ws (overrides server.url)")
	flagSet.StringVar(&opts.accessCode, "access-code", "", "host access code (overrides server.access_code)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level (overrides logging.level)")
	flagSet.BoolVar(&opts.connect, "connect", false, "connect to the configured host on startup")
	flagSet.StringVar(&opts.issueToken, "issue-token", "", "print a control API token for the given subject and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.url != "" {
		cfg.Server.URL = opts.url
	}
	if opts.accessCode != "" {
		cfg.Server.AccessCode = opts.accessCode
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var authService services.AuthService
	if cfg.Control.AuthSecret != "" {
		authService = services.NewAuthService(cfg.Control.AuthSecret, cfg.Control.TokenTTL)
	}
	if opts.issueToken != "" {
		if authService == nil {
			return errors.New("control.auth_secret is not set")
		}
		token, err := authService.GenerateToken(opts.issueToken)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "weylus-client",
		Version:     version,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: "production",
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warnw("failed to shut down tracer provider", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Settings
	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	defer repoFactory.Close()
	settingsStore := repoFactory.CreateSettingsStore()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := monitoring.NewPrometheusCollector(registry)

	// Session core
	sessionID := uuid.NewString()
	monitor := services.NewPerformanceMonitor()
	buffer := services.NewVideoStreamBuffer(0, monitor, adaptationConfig(cfg), log.With("component", "video_buffer"))
	buffer.SetUserConfig(cfg.Video)
	filter := services.NewInputEventFilter(cfg.PalmRejection(), services.NewGammaCurve(cfg.Input.PressureGamma))
	collector.RegisterBufferOverflow(buffer.Dropped)

	dialer := transport.NewWebSocketDialer(log.With("component", "transport"))
	dialer.SetPingInterval(cfg.Session.PingInterval)
	dialer.SetReadTimeout(cfg.Session.PongTimeout)
	dialer.SetWriteTimeout(cfg.Session.WriteTimeout)

	keepAlive := keepalive.NewService(time.Minute, log.With("component", "keepalive"))

	manager := services.NewConnectionManager(
		dialer,
		protocol.NewCodec(),
		buffer,
		filter,
		monitor,
		log.With("component", "connection_manager", "session_id", sessionID),
		services.WithConfig(managerConfig(cfg)),
		services.WithReconnectPolicy(services.NewFixedDelayPolicy(cfg.Session.ReconnectDelay, cfg.Session.MaxReconnectAttempts)),
		services.WithKeepAlive(keepAlive),
		services.WithSettingsStore(settingsStore),
		services.WithSessionMetrics(collector),
		services.WithSessionID(sessionID),
	)
	defer manager.Close()

	renderer := render.NewRenderer(buffer, monitor, render.DiscardSink{}, manager, log.With("component", "renderer"))

	events, unsubscribe := manager.Subscribe()
	defer unsubscribe()
	go watchSession(ctx, events, settingsStore, renderer, log)

	sinks := []func(m domain.PerformanceMetrics){
		func(m domain.PerformanceMetrics) { buffer.AdaptQuality(m) },
	}
	if cfg.Monitoring.PrometheusEnabled {
		sinks = append(sinks, collector.ObservePerformance)
	}
	if cfg.Monitoring.ShowPerformance {
		sinks = append(sinks, performanceLogger(log))
	}
	go monitor.Run(ctx, cfg.Monitoring.MetricsInterval, sinks...)
	go renderer.Run(ctx)

	// Control API
	var srv *http.Server
	if cfg.Control.Enabled {
		health := monitoring.NewHealthChecker()
		health.AddSettingsStoreCheck(settingsStore, 2*time.Second)
		health.AddSessionCheck(manager.State)

		srv = &http.Server{
			Addr:              cfg.Control.Address,
			Handler:           newRouter(cfg, zapLogger, registry, authService, health, manager, monitor, buffer, settingsStore, renderer, keepAlive),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infow("control API listening", "address", cfg.Control.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("control API failed", "error", err)
				stop()
			}
		}()
	}

	if opts.connect {
		state := manager.Connect(cfg.Server.URL, cfg.Server.AccessCode)
		log.Infow("connecting on startup",
			"server_url", cfg.Server.URL,
			"access_code", utils.MaskSensitive(cfg.Server.AccessCode, 0),
			"state", state.String(),
		)
	}

	<-ctx.Done()
	log.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Control.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("control API shutdown failed", "error", err)
		}
	}
	manager.Disconnect()
	return nil
}

func newRouter(
	cfg *config.Config,
	zapLogger *zap.Logger,
	registry *prometheus.Registry,
	authService services.AuthService,
	health *monitoring.HealthChecker,
	manager *services.ConnectionManager,
	monitor *services.PerformanceMonitor,
	buffer *services.VideoStreamBuffer,
	settingsStore ports.SettingsStore,
	renderer *render.Renderer,
	keepAlive *keepalive.Service,
) *gin.Engine {
	log := zapLogger.Sugar()
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(manager.SessionID()),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger), manager.SessionID()),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	httphandlers.NewHealthHandler(health).SetupRoutes(router)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	httphandlers.NewSessionHandler(manager, monitor, buffer, settingsStore, renderer, keepAlive).SetupRoutes(api)

	return router
}

func adaptationConfig(cfg *config.Config) services.QualityAdaptationConfig {
	return services.QualityAdaptationConfig{
		Enabled:            cfg.Adaptation.Enabled,
		DropRateThreshold:  cfg.Adaptation.DropRateThreshold,
		RecoverDropRate:    cfg.Adaptation.RecoverDropRate,
		LatencyThresholdMs: cfg.Adaptation.LatencyThresholdMs,
		ComfortFactor:      cfg.Adaptation.ComfortFactor,
		GoodWindows:        cfg.Adaptation.GoodWindows,
	}
}

func managerConfig(cfg *config.Config) services.ConnectionManagerConfig {
	mc := services.DefaultConnectionManagerConfig()
	mc.HandshakeTimeout = cfg.Session.HandshakeTimeout
	mc.SendTimeout = cfg.Session.WriteTimeout
	mc.OutboundQueueSize = cfg.Session.OutboundQueueSize
	mc.InputMessagesPerSecond = cfg.Session.InputMessagesPerSecond
	if cfg.Session.InputBurst > 0 {
		mc.InputBurst = cfg.Session.InputBurst
	}
	return mc
}
