package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mikrotik-geo-visualizer/internal/config"
	"mikrotik-geo-visualizer/internal/geoip"
	httpapi "mikrotik-geo-visualizer/internal/http"
	"mikrotik-geo-visualizer/internal/logger"
	"mikrotik-geo-visualizer/internal/mikrotik"
	"mikrotik-geo-visualizer/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default $APP_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		stdlog.Fatalf("failed to initialize logger: %v", err)
	}

	if err := run(cfg, log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := mikrotik.Options{
		Addr:    cfg.RouterAddr(),
		User:    cfg.RouterUser,
		Pass:    cfg.RouterPassword,
		Timeout: cfg.RouterTimeout,
	}
	if cfg.RouterUseSSL {
		tlsCfg, err := mikrotik.NewTLSConfig(opts.Addr, cfg.RouterSSLCAPath, cfg.RouterSSLVerify)
		if err != nil {
			return err
		}
		opts.TLS = tlsCfg
	}
	mt := mikrotik.New(opts)
	defer mt.Close()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.RouterTimeout)
	if err := mt.Connect(connectCtx); err != nil {
		// not fatal, every request dials again
		log.WithFields(map[string]any{"router": opts.Addr, "error": err.Error()}).Warn("router not reachable at startup")
	}
	connectCancel()

	geoDB, err := geoip.Open(cfg.CityDBPath, cfg.ASNDBPath, log)
	if err != nil {
		return err
	}
	defer geoDB.Close()

	var provider service.GeoProvider = geoDB
	if cfg.RedisAddr != "" {
		rdb := geoip.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.WithFields(map[string]any{"redis": cfg.RedisAddr, "error": err.Error()}).Warn("redis unavailable, geo cache disabled")
		} else {
			provider = geoip.NewCache(geoDB, rdb, cfg.RedisTTL, log)
		}
		pingCancel()
	}

	collector := service.NewCollector(log)
	if err := collector.Init(
		service.NewConnectionsService(mt, log),
		service.NewGeoService(provider, cfg.GeoWorkers, log),
	); err != nil {
		return fmt.Errorf("init collector: %w", err)
	}

	h := httpapi.NewHandler(collector, cfg.RequestTimeout, log)
	srv := &http.Server{
		Addr:              ":" + cfg.ListenPort,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP listening on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case err := <-errCh:
			return err
		case sig := <-ch:
			if sig == syscall.SIGHUP {
				if err := geoDB.Reload(); err != nil {
					log.Error(fmt.Errorf("reload geolite databases: %w", err))
				} else {
					log.Info("geolite databases reloaded")
				}
				continue
			}

			log.Info("shutting down")
			cancel()
			ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return srv.Shutdown(ctxShutdown)
		}
	}
}
