package structured

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/genai/genaitest"
	"vibe-workers/internal/common/logger"
)

type scoreResult struct {
	Score     float64
	Narrative string
}

func validateScore(v any) (scoreResult, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return scoreResult{}, fmt.Errorf("expected object, got %T", v)
	}
	score, ok := m["score"].(float64)
	if !ok || score < 0 || score > 1 {
		return scoreResult{}, fmt.Errorf("score must be a number in [0,1]")
	}
	narrative, ok := m["narrative"].(string)
	if !ok || narrative == "" {
		return scoreResult{}, fmt.Errorf("narrative is required")
	}
	return scoreResult{Score: score, Narrative: narrative}, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func createTestEngine(t *testing.T, client genai.Client, cfg Config) (*Engine, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 10 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 40 * time.Millisecond
	}
	return NewEngine(client, cfg, logger.NewTestLogger(t), WithSleep(rec.sleep)), rec
}

func TestGenerate_FencedJSONFirstAttempt(t *testing.T) {
	fake := genaitest.Texts("m1", "```json\n{\"score\":0.8,\"narrative\":\"ok\"}\n```")
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 3})

	res, err := Generate(context.Background(), engine, Request{Name: "compatibility", Prompt: "p"}, validateScore)
	require.NoError(t, err)

	assert.Equal(t, scoreResult{Score: 0.8, Narrative: "ok"}, res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "m1", res.Model)
	assert.Equal(t, 1, fake.CallCount())
}

func TestGenerate_BracketedProseBeforePayload(t *testing.T) {
	fake := genaitest.Texts("m1", `Scores [0, 1] apply. {"score":0.8,"narrative":"ok"}`)
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 3})

	res, err := Generate(context.Background(), engine, Request{Name: "compatibility", Prompt: "p"}, validateScore)
	require.NoError(t, err)
	assert.Equal(t, scoreResult{Score: 0.8, Narrative: "ok"}, res.Value)
	assert.Equal(t, 1, fake.CallCount())
}

func TestGenerate_ValidatesLaterCandidateWhenPreferredIsRejected(t *testing.T) {
	fake := genaitest.Texts("m1", `{"score":0.8,"narrative":"ok"} and the long one {"notes":"this object is longer but has no score"}`)
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 3})

	res, err := Generate(context.Background(), engine, Request{Name: "compatibility", Prompt: "p"}, validateScore)
	require.NoError(t, err)
	assert.Equal(t, 0.8, res.Value.Score)
	assert.Equal(t, 1, res.Attempts)
}

func TestGenerate_RetryBound(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max=%d", maxAttempts), func(t *testing.T) {
			fake := genaitest.Texts("m1", "definitely not json")
			engine, sleeps := createTestEngine(t, fake, Config{MaxAttempts: maxAttempts})

			res, err := Generate(context.Background(), engine, Request{Name: "x", Prompt: "p"}, validateScore)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrGenerationExhausted))

			var ex *ExhaustedError
			require.ErrorAs(t, err, &ex)
			assert.Equal(t, maxAttempts, ex.Attempts)
			assert.Equal(t, "definitely not json", ex.LastRaw)

			var pe *ParseError
			assert.ErrorAs(t, err, &pe)

			assert.Equal(t, maxAttempts, fake.CallCount())
			assert.Len(t, sleeps.waits, maxAttempts-1)
		})
	}
}

func TestGenerate_EarlySuccess(t *testing.T) {
	fake := genaitest.Texts("m1",
		`{"score": 7}`,
		`Sure! Here it is: {"score":0.5,"narrative":"balanced"} hope that helps`,
		`{"score":0.9,"narrative":"never reached"}`,
	)
	engine, sleeps := createTestEngine(t, fake, Config{MaxAttempts: 3})

	res, err := Generate(context.Background(), engine, Request{Name: "x", Prompt: "p"}, validateScore)
	require.NoError(t, err)

	assert.Equal(t, 2, fake.CallCount())
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "balanced", res.Value.Narrative)
	require.Len(t, res.History, 2)

	var ve *ValidationError
	assert.ErrorAs(t, res.History[0].Err, &ve)
	assert.NoError(t, res.History[1].Err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, sleeps.waits)
}

func TestGenerate_TransportErrorsAreRetried(t *testing.T) {
	fake := genaitest.New("m1",
		genaitest.Reply{Err: genaitest.Status("m1", 503)},
		genaitest.Reply{Err: errors.New("connection reset")},
		genaitest.Reply{Text: `{"score":0.1,"narrative":"late"}`},
	)
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 3})

	res, err := Generate(context.Background(), engine, Request{Name: "x", Prompt: "p"}, validateScore)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)

	// foreign errors come back as network transport errors
	assert.True(t, genai.IsKind(res.History[1].Err, genai.KindNetwork))
}

func TestGenerate_ModelUnsupportedAdvancesAndResetsBudget(t *testing.T) {
	fake := genaitest.New("primary")
	fake.ScriptModel("primary", genaitest.Reply{Err: genaitest.ModelUnsupported("primary")})
	fake.ScriptModel("secondary",
		genaitest.Reply{Text: "garbage"},
		genaitest.Reply{Text: "garbage"},
		genaitest.Reply{Text: `{"score":0.3,"narrative":"third try"}`},
	)
	engine, sleeps := createTestEngine(t, fake, Config{MaxAttempts: 3})

	res, err := Generate(context.Background(), engine, Request{
		Name:   "x",
		Prompt: "p",
		Models: []string{"primary", "secondary"},
	}, validateScore)
	require.NoError(t, err)

	assert.Equal(t, "secondary", res.Model)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 1, res.History[1].Number, "attempt numbering restarts per model")
	assert.Equal(t, 3, res.History[3].Number)

	calls := fake.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "primary", calls[0].Model)
	for _, c := range calls[1:] {
		assert.Equal(t, "secondary", c.Model)
	}
	// no backoff when switching models
	assert.Len(t, sleeps.waits, 2)
}

func TestGenerate_ModelUnsupportedOnLastCandidateStops(t *testing.T) {
	fake := genaitest.New("only", genaitest.Reply{Err: genaitest.ModelUnsupported("only")})
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 3})

	_, err := Generate(context.Background(), engine, Request{Name: "x", Prompt: "p"}, validateScore)
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.True(t, genai.IsModelUnsupported(err))
	assert.Equal(t, 1, fake.CallCount())
}

func TestGenerate_GenericErrorDoesNotAdvanceModel(t *testing.T) {
	fake := genaitest.New("primary")
	fake.ScriptModel("primary", genaitest.Reply{Err: genaitest.Status("primary", 500)})
	fake.ScriptModel("secondary", genaitest.Reply{Text: `{"score":0.3,"narrative":"x"}`})
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 2})

	_, err := Generate(context.Background(), engine, Request{
		Name:   "x",
		Prompt: "p",
		Models: []string{"primary", "secondary"},
	}, validateScore)
	require.ErrorIs(t, err, ErrGenerationExhausted)

	for _, c := range fake.Calls() {
		assert.Equal(t, "primary", c.Model)
	}
	assert.Equal(t, 2, fake.CallCount())
}

func TestGenerate_PerAttemptTimeout(t *testing.T) {
	fake := genaitest.New("m1",
		genaitest.Reply{Block: true},
		genaitest.Reply{Text: `{"score":1,"narrative":"fast"}`},
	)
	engine, _ := createTestEngine(t, fake, Config{MaxAttempts: 2, AttemptTimeout: 20 * time.Millisecond})

	start := time.Now()
	res, err := Generate(context.Background(), engine, Request{Name: "x", Prompt: "p"}, validateScore)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, genai.IsKind(res.History[0].Err, genai.KindTimeout))
}

func TestGenerate_MultimodalRoutesImages(t *testing.T) {
	fake := genaitest.Texts("m1", `{"score":0.2,"narrative":"pic"}`)
	engine, _ := createTestEngine(t, fake, Config{})

	_, err := Generate(context.Background(), engine, Request{
		Name:   "x",
		Prompt: "p",
		Images: []genai.ImageInput{{Base64Data: "aGk=", MimeType: "image/png"}, {Base64Data: "aGk=", MimeType: "image/png"}},
	}, validateScore)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls()[0].Images)
}

func TestGenerate_CancelledContextStopsRetrying(t *testing.T) {
	fake := genaitest.Texts("m1", "nope")
	engine := NewEngine(fake, Config{MaxAttempts: 5, BackoffBase: time.Hour, BackoffMax: time.Hour}, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Generate(ctx, engine, Request{Name: "x", Prompt: "p"}, validateScore)
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.CallCount())
}

func TestBackoff_MonotonicAndBounded(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []time.Duration
	}{
		{
			name: "doubling capped",
			cfg:  Config{BackoffBase: 500 * time.Millisecond, BackoffMax: 4 * time.Second},
			want: []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second},
		},
		{
			name: "zero base uses floor",
			cfg:  Config{},
			want: []time.Duration{minBackoff, minBackoff, minBackoff},
		},
		{
			name: "max below base",
			cfg:  Config{BackoffBase: time.Second, BackoffMax: time.Millisecond},
			want: []time.Duration{time.Second, time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(genaitest.New("m"), tt.cfg, nil)
			for i, want := range tt.want {
				assert.Equal(t, want, e.Backoff(i+1), "attempt %d", i+1)
			}
		})
	}

	e := NewEngine(genaitest.New("m"), Config{BackoffBase: 3 * time.Millisecond, BackoffMax: time.Second}, nil)
	prev := time.Duration(0)
	for n := 1; n <= 64; n++ {
		d := e.Backoff(n)
		assert.Greater(t, d, time.Duration(0))
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, time.Second)
		prev = d
	}
}
