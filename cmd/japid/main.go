// Command japid is a demo embedder: it wires config, logging, metrics,
// admission rate limiting, a couple of request handlers, and two push
// services into a running japi.Context.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/japi-go/japi"
	"github.com/japi-go/japi/examples/pushsrv/hostmetrics"
	"github.com/japi-go/japi/internal/config"
	"github.com/japi-go/japi/internal/japilog"
	"github.com/japi-go/japi/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := japilog.New(japilog.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	reg := metrics.NewRegistry()

	opts := []japi.Option{
		japi.WithLogger(logger),
		japi.WithMetrics(reg),
		japi.WithMaxClients(uint16(cfg.Server.MaxClients)),
		japi.WithMaxLineSize(cfg.Server.MaxLineSizeBytes),
		japi.WithIncludeArgsInResponse(cfg.Server.IncludeArgsInResponse),
		japi.WithKeepalive(japi.KeepaliveConfig{
			Enable:   cfg.Server.Keepalive.Enable,
			Idle:     cfg.Server.Keepalive.Idle,
			Interval: cfg.Server.Keepalive.IntervalDuration,
			Probes:   cfg.Server.Keepalive.Probes,
		}),
	}
	if cfg.RateLimit.Enable {
		opts = append(opts, japi.WithRateLimiter(japi.NewConnectionLimiter(japi.ConnectionLimiterConfig{
			GlobalRate:  cfg.RateLimit.GlobalRate,
			GlobalBurst: cfg.RateLimit.GlobalBurst,
			PerIPRate:   cfg.RateLimit.PerIPRate,
			PerIPBurst:  cfg.RateLimit.PerIPBurst,
			IdleTTL:     cfg.RateLimit.IdleTTL,
		})))
	}

	ctx := japi.New(opts...)
	registerDemoHandlers(ctx)

	pushCounter, err := ctx.RegisterPushService("push_counter")
	if err != nil {
		logger.Fatal("register push_counter failed", zap.Error(err))
	}
	pushCounter.Start(counterRoutine())

	if hm, err := ctx.RegisterPushService("host_metrics"); err != nil {
		logger.Warn("register host_metrics failed", zap.Error(err))
	} else {
		hm.Start(hostmetrics.Routine(5 * time.Second))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErrCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serveErrCh <- ctx.ListenAndServe(runCtx, addr)
	}()

	httpErrCh := make(chan error, 1)
	if cfg.Metrics.Enabled {
		go func() {
			httpErrCh <- runHTTPServer(runCtx, cfg, ctx, reg, logger)
		}()
	}

	select {
	case <-runCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			logger.Error("japi server error", zap.Error(err))
		}
		stop()
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
		stop()
	}

	ctx.Shutdown()
	<-serveErrCh
	ctx.Destroy()
	logger.Info("japid stopped")
}

func registerDemoHandlers(ctx *japi.Context) {
	_ = ctx.Register("ping", func(c *japi.Context, args, data map[string]any) {
		data["pong"] = true
	})

	_ = ctx.Register("get_temperature", func(c *japi.Context, args, data map[string]any) {
		data["celsius"] = 21.5
		data["sensor"] = "demo"
	})
}

func counterRoutine() japi.PushRoutine {
	return func(ps *japi.PushService) {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-ps.StopChannel():
				return
			case <-ticker.C:
				n++
				_, _ = ps.Send(map[string]any{"count": n})
			}
		}
	}
}

func runHTTPServer(ctx context.Context, cfg config.Config, jc *japi.Context, reg *metrics.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"clients":   jc.ClientCount(),
		})
	})
	mux.Handle(cfg.Metrics.Endpoint, reg.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
