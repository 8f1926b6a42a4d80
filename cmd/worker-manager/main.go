// cmd/worker-manager/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vibe-workers/internal/api"
	"vibe-workers/internal/common/cache"
	"vibe-workers/internal/common/camunda"
	"vibe-workers/internal/common/config"
	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/generation"
	commonhttp "vibe-workers/internal/common/http"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/observability"
	"vibe-workers/internal/common/structured"

	compat "vibe-workers/internal/workers/ai-generation/compatibility"
	cf "vibe-workers/internal/workers/ai-generation/conversation-feedback"
	pv "vibe-workers/internal/workers/ai-generation/photo-verification"
	pc "vibe-workers/internal/workers/ai-generation/practice-conversation"
	st "vibe-workers/internal/workers/ai-generation/summarize-text"
	vg "vibe-workers/internal/workers/ai-generation/vibe-generation"
)

const shutdownTimeout = 30 * time.Second

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Stringer("genai", cfg.GenAI),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Response cache (optional) ---
	rc := cache.New(cfg.Cache, log)
	if closer, ok := rc.(io.Closer); ok {
		defer closer.Close()
	}
	if cfg.Cache.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if rc.IsAvailable(ctx) {
			zapLog.Info("Redis cache connected", zap.String("address", cfg.Cache.Redis.Address))
		} else {
			zapLog.Warn("Redis cache unreachable, requests will run uncached until it recovers",
				zap.String("address", cfg.Cache.Redis.Address))
		}
		cancel()
	}

	// --- Generation stack ---
	client, err := genai.NewClient(genai.Config{
		BaseURL:         cfg.GenAI.BaseURL,
		APIKey:          cfg.GenAI.APIKey,
		Model:           cfg.GenAI.Model,
		Temperature:     cfg.GenAI.Temperature,
		MaxOutputTokens: cfg.GenAI.MaxOutputTokens,
		Timeout:         config.GetDuration(cfg.GenAI.Timeout),
	}, commonhttp.NewClient(config.GetDuration(cfg.GenAI.Timeout)), log)
	if err != nil {
		zapLog.Fatal("genai client init failed", zap.Error(err))
	}

	engine := structured.NewEngine(client, structured.Config{
		MaxAttempts:    cfg.Generation.MaxAttempts,
		AttemptTimeout: config.GetDuration(cfg.Generation.AttemptTimeout),
		BackoffBase:    config.GetDuration(cfg.Generation.BackoffBase),
		BackoffMax:     config.GetDuration(cfg.Generation.BackoffMax),
	}, log, structured.WithTracer(obs.Tracer()))

	service := generation.NewService(engine, rc, log, generation.Options{
		Models:        cfg.GenAI.Models(),
		Dedupe:        cfg.Generation.Dedupe,
		DefaultTTL:    time.Duration(cfg.Cache.DefaultTTL) * time.Second,
		Observability: obs,
	})

	handlers := buildHandlers(cfg, service, log)

	// --- Zeebe workers (optional) ---
	var (
		zeebe   *camunda.Client
		workers []*camunda.CamundaWorker
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 5, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully", zap.String("broker", cfg.Camunda.BrokerAddress))

		workers = startWorkers(cfg, zeebe, handlers, log)
		zapLog.Info("Zeebe workers registered", zap.Int("count", len(workers)))
	} else {
		zapLog.Info("Camunda disabled, serving the HTTP API only")
	}

	// --- Metrics & pprof server ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("address", cfg.HTTP.MetricsAddress))
		if err := http.ListenAndServe(cfg.HTTP.MetricsAddress, nil); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- HTTP API ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var broker api.BrokerChecker
	if zeebe != nil {
		broker = zeebe
	}
	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewRouter(api.RouterConfig{
			Handlers:       handlers,
			Service:        service,
			Logger:         log,
			RequestTimeout: config.GetDuration(cfg.HTTP.RequestTimeout),
			AllowOrigins:   cfg.HTTP.AllowOrigins,
			ServiceName:    cfg.App.Name,
			TracerProvider: obs.TracerProvider(),
			Broker:         broker,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP API listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP API failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP API", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// overrides returns the per-worker settings from config. Zero values mean
// the package default is kept.
func overrides(cfg *config.Config, taskType string) (timeout time.Duration, maxAttempts int, cacheTTL time.Duration) {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	return config.GetDuration(wcfg.Timeout), wcfg.MaxAttempts, time.Duration(wcfg.CacheTTL) * time.Second
}

func buildHandlers(cfg *config.Config, service *generation.Service, log logger.Logger) api.Handlers {
	var h api.Handlers

	{
		c := st.LoadConfig()
		timeout, attempts, ttl := overrides(cfg, st.TaskType)
		applyCommon(&c.Timeout, &c.MaxAttempts, &c.CacheTTL, timeout, attempts, ttl)
		h.Summarize = st.NewHandler(c, service, log)
	}
	{
		c := vg.LoadConfig()
		timeout, attempts, ttl := overrides(cfg, vg.TaskType)
		applyCommon(&c.Timeout, &c.MaxAttempts, &c.CacheTTL, timeout, attempts, ttl)
		h.Vibe = vg.NewHandler(c, service, log)
	}
	{
		c := compat.LoadConfig()
		timeout, attempts, ttl := overrides(cfg, compat.TaskType)
		applyCommon(&c.Timeout, &c.MaxAttempts, &c.CacheTTL, timeout, attempts, ttl)
		h.Compatibility = compat.NewHandler(c, service, log)
	}
	{
		c := pc.LoadConfig()
		timeout, attempts, _ := overrides(cfg, pc.TaskType)
		applyCommon(&c.Timeout, &c.MaxAttempts, nil, timeout, attempts, 0)
		h.Practice = pc.NewHandler(c, service, log)
	}
	{
		c := pv.LoadConfig()
		timeout, attempts, _ := overrides(cfg, pv.TaskType)
		applyCommon(&c.Timeout, &c.MaxAttempts, nil, timeout, attempts, 0)
		h.PhotoVerification = pv.NewHandler(c, service, log)
	}
	{
		c := cf.LoadConfig()
		timeout, attempts, ttl := overrides(cfg, cf.TaskType)
		applyCommon(&c.Timeout, &c.MaxAttempts, &c.CacheTTL, timeout, attempts, ttl)
		h.ConversationFeedback = cf.NewHandler(c, service, log)
	}

	return h
}

func applyCommon(timeout *time.Duration, maxAttempts *int, cacheTTL *time.Duration, t time.Duration, a int, ttl time.Duration) {
	if t > 0 {
		*timeout = t
	}
	if a > 0 {
		*maxAttempts = a
	}
	if cacheTTL != nil && ttl > 0 {
		*cacheTTL = ttl
	}
}

func startWorkers(cfg *config.Config, zeebe *camunda.Client, h api.Handlers, log logger.Logger) []*camunda.CamundaWorker {
	jobHandlers := []struct {
		taskType string
		handler  camunda.JobHandler
	}{
		{st.TaskType, h.Summarize},
		{vg.TaskType, h.Vibe},
		{compat.TaskType, h.Compatibility},
		{pc.TaskType, h.Practice},
		{pv.TaskType, h.PhotoVerification},
		{cf.TaskType, h.ConversationFeedback},
	}

	var workers []*camunda.CamundaWorker
	for _, jh := range jobHandlers {
		if !config.IsWorkerEnabled(cfg, jh.taskType) {
			log.Info("worker disabled", map[string]interface{}{"taskType": jh.taskType})
			continue
		}
		workers = append(workers, camunda.NewWorker(
			zeebe.GetClient(),
			jh.taskType,
			config.GetWorkerConfig(cfg, jh.taskType),
			jh.handler,
			log,
		))
	}
	return workers
}
