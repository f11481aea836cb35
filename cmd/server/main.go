package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/sensoredit/internal/api"
	"github.com/gyaneshwarpardhi/sensoredit/internal/config"
	"github.com/gyaneshwarpardhi/sensoredit/internal/editor"
	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
)

func main() {
	cfgPath := flag.String("config", "configs/sensoredit.yaml", "Path to settings YAML")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	setLevel(level, cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Host adapters ────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Storage.Backend, "err", err)
		os.Exit(1)
	}

	catalog, err := host.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		slog.Error("failed to load device catalog", "err", err)
		os.Exit(1)
	}
	slog.Info("device catalog loaded", "devices", len(catalog.ListDevices()))

	deps := editor.Deps{
		Store:       store,
		Catalog:     catalog,
		Logger:      logger,
		SavePolicy:  policy(cfg.Retry),
		ReadyPolicy: policy(cfg.Ready),
	}
	if cfg.MQTT.Broker != "" {
		client, err := host.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			slog.Error("failed to connect to MQTT broker", "broker", cfg.MQTT.Broker, "err", err)
			os.Exit(1)
		}
		defer client.Disconnect(250)
		mh, err := host.NewMQTTHost(client, cfg.MQTT.TopicPrefix, logger)
		if err != nil {
			slog.Error("failed to attach to host", "err", err)
			os.Exit(1)
		}
		deps.Invoker, deps.Reloader = mh, mh
		slog.Info("MQTT host link up", "broker", cfg.MQTT.Broker)
	} else {
		slog.Warn("mqtt.broker not set: action tests and restarts disabled")
	}

	mgr := editor.NewManager(deps)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		setLevel(level, newCfg.Log.Level)
		mgr.SetPolicies(policy(newCfg.Retry), policy(newCfg.Ready))
		if newCfg.Catalog.Path != "" {
			if err := catalog.Reload(newCfg.Catalog.Path); err != nil {
				slog.Warn("catalog reload skipped", "err", err)
				return
			}
		}
		slog.Info("settings hot-reloaded", "devices", len(catalog.ListDevices()))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(mgr, catalog),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second, // saves and restarts wait on the host
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	if n := len(mgr.Sessions()); n > 0 {
		slog.Warn("open sessions dropped", "count", n)
	}
	slog.Info("goodbye")
}

func openStore(ctx context.Context, c config.StorageConf) (host.Store, error) {
	if c.Backend == "redis" {
		rs := host.NewRedisStore(host.NewRedisClient(c.RedisAddr), c.KeyPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return nil, err
		}
		return rs, nil
	}
	return host.NewFileStore(c.Dir)
}

func policy(r config.RetryConf) host.Policy {
	return host.Policy{Interval: r.Interval(), Timeout: r.Timeout(), MaxAttempts: r.MaxAttempts}
}

func setLevel(v *slog.LevelVar, level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	v.Set(l)
}
