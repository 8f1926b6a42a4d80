// Package generation is the caller boundary of the reliability layer: cache
// lookup, structured generation and fallback substitution behind a single
// call that always yields {data, meta} or an error.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"vibe-workers/internal/common/cache"
	"vibe-workers/internal/common/fallback"
	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/metrics"
	"vibe-workers/internal/common/observability"
	"vibe-workers/internal/common/structured"
	"vibe-workers/internal/common/validation"
)

// Sources reported to observability.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

type Meta struct {
	Cached       bool   `json:"cached"`
	UsedFallback bool   `json:"usedFallback"`
	DurationMs   int64  `json:"durationMs"`
	Model        string `json:"model,omitempty"`
	Attempts     int    `json:"attempts"`
	RequestID    string `json:"requestId"`
}

type Response[T any] struct {
	Data T    `json:"data"`
	Meta Meta `json:"meta"`
}

// UseCase binds a use-case name to its output validator. The name selects the
// fallback document and labels cache keys, logs and metrics.
type UseCase[T any] struct {
	Name        string
	Validate    structured.Validator[T]
	MaxAttempts int
	CacheTTL    time.Duration
	// Models overrides the service candidate list.
	Models []string
}

type Request struct {
	Prompt string
	Images []genai.ImageInput
	// CacheKey enables caching for this request when non-empty.
	CacheKey string
}

type Options struct {
	// Models are the candidate model ids, primary first.
	Models []string
	// Dedupe collapses concurrent misses for the same cache key into one
	// upstream run. A caller whose context ends leaves the run to the others.
	Dedupe        bool
	DefaultTTL    time.Duration
	Observability *observability.Observability
}

type Service struct {
	engine *structured.Engine
	cache  cache.ResponseCache
	log    logger.Logger
	opts   Options
	group  *singleflight.Group
}

func NewService(engine *structured.Engine, rc cache.ResponseCache, log logger.Logger, opts Options) *Service {
	if rc == nil {
		rc = cache.NoopCache{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	s := &Service{
		engine: engine,
		cache:  rc,
		log:    log.WithFields(map[string]interface{}{"component": "generation"}),
		opts:   opts,
	}
	if opts.Dedupe {
		s.group = &singleflight.Group{}
	}
	return s
}

// CacheAvailable reports whether the response cache store answers.
func (s *Service) CacheAvailable(ctx context.Context) bool {
	return s.cache.IsAvailable(ctx)
}

type requestIDKey struct{}

// WithRequestID attaches a request id that Perform copies into Meta.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached with WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// cachedEntry is what is written to the cache: the validated payload and the
// model that produced it.
type cachedEntry struct {
	Model string          `json:"model"`
	Data  json.RawMessage `json:"data"`
}

// Perform serves one use-case request. It returns an error only when input
// is unusable or generation was exhausted for a use case without a fallback.
func Perform[T any](ctx context.Context, s *Service, uc UseCase[T], req Request) (*Response[T], error) {
	start := time.Now()
	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := s.opts.Observability.StartSpan(ctx, "generation.perform",
		attribute.String("use_case", uc.Name),
		attribute.String("request_id", requestID),
		attribute.Bool("cacheable", req.CacheKey != ""),
	)
	defer span.End()

	log := s.log.WithFields(map[string]interface{}{"useCase": uc.Name, "requestId": requestID})

	meta := func(m Meta) Meta {
		m.DurationMs = time.Since(start).Milliseconds()
		m.RequestID = requestID
		return m
	}

	if req.CacheKey != "" {
		if value, model, ok := lookup(ctx, s, uc, req.CacheKey, log); ok {
			span.SetAttributes(attribute.String("source", SourceCache))
			s.opts.Observability.RecordGeneration(ctx, uc.Name, SourceCache, time.Since(start))
			return &Response[T]{Data: value, Meta: meta(Meta{Cached: true, Model: model})}, nil
		}
	}

	result, err := run(ctx, s, uc, req)
	if err == nil {
		if req.CacheKey != "" {
			store(ctx, s, uc, req.CacheKey, result, log)
		}
		span.SetAttributes(attribute.String("source", SourceLive))
		s.opts.Observability.RecordGeneration(ctx, uc.Name, SourceLive, time.Since(start))
		return &Response[T]{
			Data: result.Value,
			Meta: meta(Meta{Model: result.Model, Attempts: result.Attempts}),
		}, nil
	}

	if !errors.Is(err, structured.ErrGenerationExhausted) {
		return nil, err
	}

	attempts := 0
	var exhausted *structured.ExhaustedError
	if errors.As(err, &exhausted) {
		attempts = exhausted.Attempts
	}

	value, ok, fbErr := fallbackValue(uc)
	if fbErr != nil {
		log.Error("registered fallback does not validate", map[string]interface{}{"error": fbErr})
		return nil, fmt.Errorf("fallback %s: %w", uc.Name, fbErr)
	}
	if !ok {
		log.Error("generation exhausted and no fallback registered", map[string]interface{}{"attempts": attempts, "error": err})
		return nil, err
	}

	metrics.FallbackServed.WithLabelValues(uc.Name).Inc()
	span.SetAttributes(attribute.String("source", SourceFallback))
	s.opts.Observability.RecordGeneration(ctx, uc.Name, SourceFallback, time.Since(start))
	log.Warn("serving fallback after exhausted generation", map[string]interface{}{"attempts": attempts, "error": err})

	return &Response[T]{Data: value, Meta: meta(Meta{UsedFallback: true, Attempts: attempts})}, nil
}

func lookup[T any](ctx context.Context, s *Service, uc UseCase[T], key string, log logger.Logger) (T, string, bool) {
	var zero T
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		metrics.CacheLookups.WithLabelValues(uc.Name, metrics.CacheMiss).Inc()
		return zero, "", false
	}

	var entry cachedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		metrics.CacheLookups.WithLabelValues(uc.Name, metrics.CacheInvalid).Inc()
		log.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err})
		return zero, "", false
	}
	value, err := validation.Decode[T](uc.Validate, entry.Data)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(uc.Name, metrics.CacheInvalid).Inc()
		log.Warn("discarding cache entry that fails validation", map[string]interface{}{"key": key, "error": err})
		return zero, "", false
	}

	metrics.CacheLookups.WithLabelValues(uc.Name, metrics.CacheHit).Inc()
	return value, entry.Model, true
}

func store[T any](ctx context.Context, s *Service, uc UseCase[T], key string, result *structured.Result[T], log logger.Logger) {
	data, err := json.Marshal(result.Value)
	if err != nil {
		log.Warn("result not cacheable", map[string]interface{}{"error": err})
		return
	}
	entry, err := json.Marshal(cachedEntry{Model: result.Model, Data: data})
	if err != nil {
		return
	}
	ttl := uc.CacheTTL
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}
	s.cache.Set(ctx, key, entry, ttl)
}

func run[T any](ctx context.Context, s *Service, uc UseCase[T], req Request) (*structured.Result[T], error) {
	models := uc.Models
	if len(models) == 0 {
		models = s.opts.Models
	}
	sreq := structured.Request{
		Name:        uc.Name,
		Prompt:      req.Prompt,
		Images:      req.Images,
		MaxAttempts: uc.MaxAttempts,
		Models:      models,
	}

	if s.group == nil || req.CacheKey == "" {
		return structured.Generate(ctx, s.engine, sreq, uc.Validate)
	}

	// The shared run outlives any single caller, bounded by the engine's
	// attempt timeouts; each caller stops waiting when its own ctx ends.
	ch := s.group.DoChan(req.CacheKey, func() (interface{}, error) {
		return structured.Generate(context.WithoutCancel(ctx), s.engine, sreq, uc.Validate)
	})
	select {
	case <-ctx.Done():
		return nil, &structured.ExhaustedError{Name: uc.Name, Models: models, Reason: ctx.Err()}
	case r := <-ch:
		if r.Shared {
			s.log.Debug("joined in-flight generation", map[string]interface{}{"useCase": uc.Name})
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*structured.Result[T]), nil
	}
}

// fallbackValue decodes and validates the registered fallback. ok is false
// when the use case has none.
func fallbackValue[T any](uc UseCase[T]) (T, bool, error) {
	var zero T
	raw, ok := fallback.Get(uc.Name)
	if !ok {
		return zero, false, nil
	}
	value, err := validation.Decode[T](uc.Validate, raw)
	if err != nil {
		return zero, true, err
	}
	return value, true, nil
}
