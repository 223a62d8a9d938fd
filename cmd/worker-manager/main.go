package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"opportunity-matcher/internal/bootstrap"
	"opportunity-matcher/internal/common/camunda"
	"opportunity-matcher/internal/common/config"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/observability"
	lo "opportunity-matcher/internal/workers/matching/list-opportunities"
	mo "opportunity-matcher/internal/workers/matching/match-opportunities"
	smd "opportunity-matcher/internal/workers/matching/send-match-digest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("opportunitySource", cfg.Opportunities.Source),
	)

	obs := observability.New("worker-manager", observability.WithLogger(log))
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Telemetry: obs})
	if err != nil {
		zapLog.Fatal("failed to build matching client", zap.Error(err))
	}
	defer components.Close()

	zeebeClient, err := camunda.Connect(ctx, cfg.Camunda, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected", zap.String("broker", cfg.Camunda.BrokerAddress))

	var workers []worker.JobWorker

	var notifier mo.Notifier
	if components.Notifier != nil {
		notifier = components.Notifier
	}
	handler, err := mo.NewHandler(mo.HandlerOptions{
		AppConfig: cfg,
		Matcher:   components.Matcher,
		Notifier:  notifier,
		Telemetry: obs,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create match-opportunities handler", zap.Error(err))
	}
	if w := camunda.StartWorker(zeebeClient, mo.TaskType, config.GetWorkerConfig(cfg, mo.TaskType), handler.Handle, log); w != nil {
		workers = append(workers, w)
	}
	if taskType := lo.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := lo.NewHandler(&lo.Config{
			Enabled:       wcfg.Enabled,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, components.Source, log)
		if w := camunda.StartWorker(zeebeClient, taskType, wcfg, handler.Handle, log); w != nil {
			workers = append(workers, w)
		}
	}

	if components.Notifier != nil {
		handler, err := smd.NewHandler(smd.HandlerOptions{
			AppConfig: cfg,
			Notifier:  components.Notifier,
			Logger:    log,
		})
		if err != nil {
			zapLog.Fatal("failed to create send-match-digest handler", zap.Error(err))
		}
		if w := camunda.StartWorker(zeebeClient, smd.TaskType, config.GetWorkerConfig(cfg, smd.TaskType), handler.Handle, log); w != nil {
			workers = append(workers, w)
		}
	} else {
		zapLog.Info("No notification channel enabled, skipping worker", zap.String("taskType", smd.TaskType))
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newMux(components, zeebeClient),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newMux(components *bootstrap.Components, zeebeClient zbc.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", "")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := components.Ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err.Error())
			return
		}
		if err := camunda.HealthCheck(ctx, zeebeClient); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready", "")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status, reason string) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if reason != "" {
		body["reason"] = reason
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
