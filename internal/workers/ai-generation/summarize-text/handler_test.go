package summarizetext

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-workers/internal/common/cache"
	"vibe-workers/internal/common/camunda/camundatest"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/fallback"
	"vibe-workers/internal/common/genai/genaitest"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/structured"
)

// ==========================
// Test Helpers
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		MaxAttempts:  2,
		CacheTTL:     time.Hour,
		MaxTextRunes: 100,
	}
}

func createTestHandler(t *testing.T, fake *genaitest.Fake, rc cache.ResponseCache) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	engine := structured.NewEngine(fake, structured.Config{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffMax:  time.Millisecond,
	}, log)
	return NewHandler(createTestConfig(), generation.NewService(engine, rc, log, generation.Options{}), log)
}

func createRedisCache(t *testing.T) (cache.ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCache(client, logger.NewTestLogger(t)), mr
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "test-process",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_SummarizeText",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func assertErrorCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok, "error should be StandardError")
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_Success(t *testing.T) {
	fake := genaitest.Texts("gemini-test", "```json\n{\"summary\": \"  Two friends plan a hike.  \"}\n```")
	h := createTestHandler(t, fake, nil)

	resp, err := h.Execute(context.Background(), &Input{Text: "Alex and Sam talk about hiking next weekend."})
	require.NoError(t, err)

	assert.Equal(t, "Two friends plan a hike.", resp.Data.Summary)
	assert.False(t, resp.Meta.UsedFallback)
	assert.Equal(t, "gemini-test", resp.Meta.Model)
	assert.Equal(t, 1, resp.Meta.Attempts)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Summarize the provided text")
	assert.Contains(t, calls[0].Prompt, "Alex and Sam talk about hiking next weekend.")
	assert.Equal(t, 0, calls[0].Images)
}

func TestExecute_InputValidation(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{"empty text", &Input{}},
		{"whitespace text", &Input{Text: "   \n\t"}},
		{"text too long", &Input{Text: strings.Repeat("a", 101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := genaitest.Texts("gemini-test", `{"summary":"x"}`)
			h := createTestHandler(t, fake, nil)

			resp, err := h.Execute(context.Background(), tt.input)
			assert.Nil(t, resp)
			assertErrorCode(t, err, errors.ErrCodeInvalidInput)
			assert.Equal(t, 0, fake.CallCount())
		})
	}
}

func TestExecute_CachesBySameText(t *testing.T) {
	fake := genaitest.Texts("gemini-test", `{"summary":"first"}`, `{"summary":"second"}`)
	rc, mr := createRedisCache(t)
	h := createTestHandler(t, fake, rc)

	first, err := h.Execute(context.Background(), &Input{Text: "same text"})
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), &Input{Text: "  same text  "})
	require.NoError(t, err)

	assert.Equal(t, "first", second.Data.Summary)
	assert.True(t, second.Meta.Cached)
	assert.False(t, first.Meta.Cached)
	assert.Equal(t, 1, fake.CallCount())
	assert.Equal(t, time.Hour, mr.TTL(cache.Key(TaskType, "same text")))
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	fake := genaitest.Texts("gemini-test",
		"Sure! Here is your summary.",
		`{"summary": "ok"}`,
	)
	h := createTestHandler(t, fake, nil)

	resp, err := h.Execute(context.Background(), &Input{Text: "text"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Data.Summary)
	assert.Equal(t, 2, resp.Meta.Attempts)
}

func TestExecute_ServesFallbackWhenExhausted(t *testing.T) {
	fake := genaitest.Texts("gemini-test", "no json here")
	h := createTestHandler(t, fake, nil)

	resp, err := h.Execute(context.Background(), &Input{Text: "text"})
	require.NoError(t, err)
	assert.True(t, resp.Meta.UsedFallback)
	assert.Equal(t, 2, resp.Meta.Attempts)
	assert.NotEmpty(t, resp.Data.Summary)
}

// ==========================
// Schema Tests
// ==========================

func TestFallbackPassesValidator(t *testing.T) {
	raw, ok := fallback.Get(TaskType)
	require.True(t, ok)

	var doc interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	_, err := validateOutput(doc)
	assert.NoError(t, err)
}

func TestValidateOutput(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"summary":"A short summary."}`, false},
		{"extra fields ignored", `{"summary":"ok","confidence":0.9}`, false},
		{"missing summary", `{}`, true},
		{"blank summary", `{"summary":"   "}`, true},
		{"wrong type", `{"summary":42}`, true},
		{"array root", `["summary"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &doc))
			_, err := validateOutput(doc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ==========================
// Job Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := parseInput(createMockJob(1, map[string]interface{}{"text": "hello"}))
	require.NoError(t, err)
	assert.Equal(t, "hello", input.Text)

	job := createMockJob(2, nil)
	job.Variables = "{not json"
	_, err = parseInput(job)
	assertErrorCode(t, err, errors.ErrCodeInvalidInput)
}

func TestJobOutput_Shape(t *testing.T) {
	out := JobOutput{
		Output:         Output{Summary: "s"},
		GenerationMeta: generation.Meta{Cached: true, RequestID: "job-1"},
	}
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &vars))
	assert.Equal(t, "s", vars["summary"])
	meta := vars["generationMeta"].(map[string]interface{})
	assert.Equal(t, true, meta["cached"])
	assert.Equal(t, "job-1", meta["requestId"])
}

// ==========================
// Handle Tests
// ==========================

func TestHandle_CompletesWithOutput(t *testing.T) {
	fake := genaitest.Texts("gemini-test", `{"summary": "Short."}`)
	h := createTestHandler(t, fake, nil)
	client := camundatest.NewJobClient()

	h.Handle(client, createMockJob(7, map[string]interface{}{"text": "A long text."}))

	completed := client.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, int64(7), completed[0].JobKey)

	var out JobOutput
	require.NoError(t, json.Unmarshal([]byte(completed[0].Variables), &out))
	assert.Equal(t, "Short.", out.Summary)
	assert.False(t, out.GenerationMeta.UsedFallback)
	assert.Equal(t, "job-7", out.GenerationMeta.RequestID)
}

func TestHandle_DeadlineStillCompletesWithFallback(t *testing.T) {
	fake := genaitest.New("gemini-test", genaitest.Reply{Block: true})
	h := createTestHandler(t, fake, nil)
	h.config.Timeout = 100 * time.Millisecond
	client := camundatest.NewJobClient()

	h.Handle(client, createMockJob(8, map[string]interface{}{"text": "A long text."}))

	assert.Empty(t, client.Rejected())
	assert.Empty(t, client.Failed())
	completed := client.Completed()
	require.Len(t, completed, 1)

	var out JobOutput
	require.NoError(t, json.Unmarshal([]byte(completed[0].Variables), &out))
	assert.True(t, out.GenerationMeta.UsedFallback)
	assert.NotEmpty(t, out.Summary)
	assert.Equal(t, 1, fake.CallCount())
}

func TestHandle_InvalidInputThrowsBPMNError(t *testing.T) {
	fake := genaitest.Texts("gemini-test", `{"summary": "Short."}`)
	h := createTestHandler(t, fake, nil)
	client := camundatest.NewJobClient()

	h.Handle(client, createMockJob(9, map[string]interface{}{"text": "   "}))

	assert.Empty(t, client.Completed())
	thrown := client.Thrown()
	require.Len(t, thrown, 1)
	assert.Equal(t, string(errors.ErrCodeInvalidInput), thrown[0].ErrorCode)
	assert.Equal(t, 0, fake.CallCount())
}
