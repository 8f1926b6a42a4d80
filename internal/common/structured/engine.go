// Package structured turns unreliable free-form model output into validated,
// typed values. One call runs a bounded, sequential retry loop against the
// generative client; it never returns a value the validator rejected.
package structured

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/metrics"
)

var ErrGenerationExhausted = errors.New("GENERATION_EXHAUSTED")

const (
	defaultMaxAttempts = 3
	// minBackoff applies when no base is configured, so retries never hammer
	// the upstream back to back.
	minBackoff = 50 * time.Millisecond
)

// Validator converts a decoded JSON value into T or rejects it.
type Validator[T any] func(v any) (T, error)

// ValidationError means the output parsed but did not match the schema.
type ValidationError struct {
	Raw string
	Err error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Request is one structured generation call.
type Request struct {
	// Name labels logs, spans and metrics; usually the use case.
	Name   string
	Prompt string
	Images []genai.ImageInput
	// MaxAttempts per candidate model; 0 uses the engine default.
	MaxAttempts int
	// Models are candidate model ids in preference order; empty uses the
	// client's own model.
	Models []string
}

// Attempt is the record of one try. It lives only as long as the Result.
type Attempt struct {
	Number   int
	Model    string
	Raw      string
	Err      error
	Duration time.Duration
}

type Result[T any] struct {
	Value    T
	Model    string
	Attempts int
	Duration time.Duration
	History  []Attempt
}

// ExhaustedError is returned when no attempt on any candidate model produced
// a valid value. errors.Is(err, ErrGenerationExhausted) matches it.
type ExhaustedError struct {
	Name     string
	Attempts int
	Models   []string
	LastRaw  string
	Reason   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("generation %q exhausted after %d attempts (models: %s): %v",
		e.Name, e.Attempts, strings.Join(e.Models, ","), e.Reason)
}

func (e *ExhaustedError) Unwrap() error { return e.Reason }

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrGenerationExhausted
}

type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

type Engine struct {
	client genai.Client
	cfg    Config
	log    logger.Logger
	tracer trace.Tracer
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Engine)

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

func NewEngine(client genai.Client, cfg Config, log logger.Logger, opts ...Option) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	e := &Engine{
		client: client,
		cfg:    cfg,
		log:    log.WithFields(map[string]interface{}{"component": "structured"}),
		tracer: otel.Tracer("vibe-workers/structured"),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Client exposes the underlying generative client.
func (e *Engine) Client() genai.Client { return e.client }

// Backoff is the wait after failed attempt n (n >= 1): base*2^(n-1), capped
// at the configured maximum.
func (e *Engine) Backoff(n int) time.Duration {
	base := e.cfg.BackoffBase
	if base <= 0 {
		base = minBackoff
	}
	ceiling := e.cfg.BackoffMax
	if ceiling < base {
		ceiling = base
	}
	d := base
	for i := 1; i < n; i++ {
		if d >= ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate runs the attempt loop for req and returns the first value that
// parses and passes validate.
//
// A model_unsupported transport error moves on to the next candidate model
// with a fresh attempt budget. Any other failure is retried on the same model
// after a backoff until its budget is spent.
func Generate[T any](ctx context.Context, e *Engine, req Request, validate Validator[T]) (*Result[T], error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.MaxAttempts
	}
	models := req.Models
	if len(models) == 0 {
		models = []string{e.client.Model()}
	}
	name := req.Name
	if name == "" {
		name = "unnamed"
	}

	ctx, span := e.tracer.Start(ctx, "structured.generate", trace.WithAttributes(
		attribute.String("use_case", name),
		attribute.Int("max_attempts", maxAttempts),
		attribute.Int("images", len(req.Images)),
		attribute.StringSlice("models", models),
	))
	defer span.End()

	log := e.log.WithFields(map[string]interface{}{"useCase": name})
	start := time.Now()
	var (
		history []Attempt
		lastRaw string
		lastErr error
		tried   []string
	)

models:
	for mi, model := range models {
		client := genai.WithModel(e.client, model)
		tried = append(tried, model)

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			attemptStart := time.Now()
			raw, err := e.call(ctx, client, req)
			rec := Attempt{Number: attempt, Model: model, Raw: raw}

			if err == nil {
				var value T
				value, err = parseAndValidate(raw, validate)
				if err == nil {
					rec.Duration = time.Since(attemptStart)
					history = append(history, rec)
					elapsed := time.Since(start)

					metrics.GenerationAttempts.WithLabelValues(name, model, metrics.OutcomeSuccess).Inc()
					metrics.GenerationDuration.WithLabelValues(name, metrics.OutcomeSuccess).Observe(elapsed.Seconds())
					span.SetAttributes(attribute.Int("attempts", len(history)), attribute.String("model", model))
					log.Info("structured generation succeeded", map[string]interface{}{
						"model":      model,
						"attempt":    attempt,
						"attempts":   len(history),
						"durationMs": elapsed.Milliseconds(),
					})
					return &Result[T]{
						Value:    value,
						Model:    model,
						Attempts: len(history),
						Duration: elapsed,
						History:  history,
					}, nil
				}
				lastRaw = raw
			}

			rec.Err = err
			rec.Duration = time.Since(attemptStart)
			history = append(history, rec)
			lastErr = err
			outcome := outcomeOf(err)
			metrics.GenerationAttempts.WithLabelValues(name, model, outcome).Inc()

			log.Warn("structured generation attempt failed", map[string]interface{}{
				"model":       model,
				"attempt":     attempt,
				"maxAttempts": maxAttempts,
				"outcome":     outcome,
				"rawLen":      len(raw),
				"error":       err,
			})

			if genai.IsModelUnsupported(err) {
				metrics.GenerationModelFallbacks.WithLabelValues(name, model).Inc()
				if mi < len(models)-1 {
					span.AddEvent("model_fallback", trace.WithAttributes(
						attribute.String("from", model),
						attribute.String("to", models[mi+1]),
					))
					continue models
				}
				// Retrying a model the upstream reports as missing cannot succeed.
				break models
			}

			if attempt == maxAttempts || ctx.Err() != nil {
				break models
			}
			if err := e.sleep(ctx, e.Backoff(attempt)); err != nil {
				lastErr = err
				break models
			}
		}
	}

	elapsed := time.Since(start)
	exhausted := &ExhaustedError{
		Name:     name,
		Attempts: len(history),
		Models:   tried,
		LastRaw:  lastRaw,
		Reason:   lastErr,
	}
	metrics.GenerationDuration.WithLabelValues(name, metrics.OutcomeExhausted).Observe(elapsed.Seconds())
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, "generation exhausted")
	log.Error("structured generation exhausted", map[string]interface{}{
		"attempts":   len(history),
		"models":     tried,
		"durationMs": elapsed.Milliseconds(),
		"error":      lastErr,
	})
	return nil, exhausted
}

// call performs one upstream request under the per-attempt timeout.
func (e *Engine) call(ctx context.Context, client genai.Client, req Request) (string, error) {
	attemptCtx := ctx
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()
	}

	var (
		raw string
		err error
	)
	if len(req.Images) > 0 {
		raw, err = client.GenerateMultimodal(attemptCtx, req.Prompt, req.Images)
	} else {
		raw, err = client.GenerateText(attemptCtx, req.Prompt)
	}
	if err == nil {
		return raw, nil
	}

	var te *genai.TransportError
	if errors.As(err, &te) {
		return raw, err
	}
	kind := genai.KindNetwork
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		kind = genai.KindTimeout
	}
	return raw, &genai.TransportError{Kind: kind, Model: client.Model(), Err: err}
}

func parseAndValidate[T any](raw string, validate Validator[T]) (T, error) {
	var zero T
	docs, err := decodeAll(raw)
	if err != nil {
		return zero, err
	}
	// Later candidates only get a chance when the preferred one is rejected;
	// the reported error is always the preferred candidate's.
	var firstErr error
	for _, doc := range docs {
		value, err := validate(doc)
		if err == nil {
			return value, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	var ve *ValidationError
	if errors.As(firstErr, &ve) {
		return zero, firstErr
	}
	return zero, &ValidationError{Raw: raw, Err: firstErr}
}

func outcomeOf(err error) string {
	var (
		pe *ParseError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &pe):
		return metrics.OutcomeParse
	case errors.As(err, &ve):
		return metrics.OutcomeValidation
	default:
		return metrics.OutcomeTransport
	}
}
