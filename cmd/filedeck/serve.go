package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/adapter/gateway"
	"filedeck/internal/infra/config"
	"filedeck/internal/infra/logger"
	"filedeck/internal/infra/middleware"
	"filedeck/internal/infra/tracer"
	"filedeck/internal/usecase/discovery"
	"filedeck/internal/usecase/eventbus"
	"filedeck/internal/usecase/files"
	"filedeck/internal/usecase/settings"
)

func runServe(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}

	// 1. Config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	tracerShutdown, err := tracer.Setup(parent, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Security (sandbox, audit)
	sec, secCleanup, err := initSecurity(cfg, log)
	if err != nil {
		return fmt.Errorf("security: %w", err)
	}
	defer secCleanup()

	// 4. Filesystem backend and settings store
	local := filesystem.NewLocal()
	store, storeCloser, err := openSettingsStore(cfg.Settings, local, sec.Sandbox)
	if err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	defer storeCloser()

	// 5. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 6. Services
	fileSvc := files.NewService(local, files.Options{
		MaxPreviewBytes: cfg.Files.MaxPreviewBytes,
		AllowOverwrite:  cfg.Files.AllowOverwrite,
	}, bus, log)
	settingsSvc := settings.NewService(store, cfg.Settings.DefaultPath, bus, log)
	if sec.Sandbox != nil {
		fileSvc.SetPathValidator(sec.Sandbox)
	}
	if sec.Audit != nil {
		fileSvc.SetAuditLogger(sec.Audit)
		settingsSvc.SetAuditLogger(sec.Audit)
	}

	// 7. Graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 8. Scheduler
	sched, err := initScheduler(ctx, cfg, sec, log)
	if err != nil {
		return err
	}
	defer sched.Stop()

	// 9. Gateway
	gwCfg := gateway.Config{
		Addr:            cfg.Server.Addr,
		AssetsDir:       cfg.Server.AssetsDir,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
		},
		Version: version,
	}
	if sec.Sandbox != nil {
		gwCfg.SandboxRoot = sec.Sandbox.Root()
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		gwCfg.RateLimit = &middleware.RateLimitConfig{
			RequestsPerMin: rl.RequestsPerMin,
			BurstSize:      rl.Burst,
			TrustedProxies: rl.TrustedProxies,
		}
	}
	gw, err := gateway.NewServer(gwCfg, gateway.Deps{
		Files:    fileSvc,
		Settings: settingsSvc,
		Events:   bus,
		Tasks:    sched.Tasks,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- gw.Start(ctx) }()

	// 10. Discovery
	if cfg.Discovery.MDNS {
		go advertise(ctx, cfg, gw, log)
	}

	log.Info("filedeck starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"settings_backend", store.Name(),
		"sandbox", gwCfg.SandboxRoot,
		"audit", sec.Audit != nil,
		"rate_limit", gwCfg.RateLimit != nil,
	)

	if err := <-errCh; err != nil {
		return err
	}
	log.Info("filedeck stopped")
	return nil
}

// advertise waits for the listener to bind, then announces it over mDNS
// until ctx is done.
func advertise(ctx context.Context, cfg *config.Config, gw *gateway.Server, log *slog.Logger) {
	var port int
	for port == 0 {
		if _, p, err := net.SplitHostPort(gw.BoundAddr()); err == nil {
			port, _ = strconv.Atoi(p)
		}
		if port != 0 {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}

	meta := map[string]string{
		"version": version,
		"backend": cfg.Settings.Backend,
	}
	if err := discovery.New(log).Advertise(ctx, cfg.Discovery.Instance, port, meta); err != nil {
		log.Warn("mdns advertise failed", "error", err)
	}
}
