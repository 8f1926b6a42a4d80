package vibegeneration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-workers/internal/common/cache"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/fallback"
	"vibe-workers/internal/common/genai/genaitest"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/structured"
)

const validOutput = `{
	"headline": "Sunrise hikes and second coffees",
	"vibe": "An outdoorsy optimist who never says no to a trail or a good playlist.",
	"traits": ["Adventurous", "Warm", "Curious"],
	"conversationStarters": ["Which trail should everyone try once?"]
}`

// ==========================
// Test Helpers
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:     5 * time.Second,
		MaxAttempts: 2,
		CacheTTL:    time.Hour,
		MaxPhotos:   2,
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

func createValidInput() *Input {
	return &Input{
		UserID:    "user-1",
		Name:      "Jamie",
		Bio:       "Weekend hiker, weekday coder.",
		Interests: []string{"hiking", " ", "coffee"},
		Prompts: []PromptAnswer{
			{Question: "My perfect Sunday", Answer: "Trail at dawn, brunch after."},
			{Question: "Unanswered", Answer: "  "},
		},
	}
}

func photo(mime string) Photo {
	return Photo{Data: base64.StdEncoding.EncodeToString([]byte("fake image bytes")), MimeType: mime}
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
		ElementId:                "Activity_VibeGeneration",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_TextOnlyProfile(t *testing.T) {
	fake := genaitest.Texts("gemini-test", validOutput)
	h := createTestHandler(t, fake, nil)

	resp, err := h.Execute(context.Background(), createValidInput())
	require.NoError(t, err)

	assert.Equal(t, "Sunrise hikes and second coffees", resp.Data.Headline)
	assert.Len(t, resp.Data.Traits, 3)
	assert.False(t, resp.Meta.UsedFallback)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0, calls[0].Images)
	assert.Contains(t, calls[0].Prompt, "Generate a vibe profile")
	assert.Contains(t, calls[0].Prompt, "Trail at dawn, brunch after.")
	assert.NotContains(t, calls[0].Prompt, "Unanswered")
}

func TestExecute_PhotosMakeTheCallMultimodal(t *testing.T) {
	fake := genaitest.Texts("gemini-test", validOutput)
	h := createTestHandler(t, fake, nil)

	input := createValidInput()
	input.Photos = []Photo{photo("image/jpeg"), {Data: "data:image/png;base64," + photo("").Data}}

	_, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 2, calls[0].Images)
	assert.NotContains(t, calls[0].Prompt, input.Photos[0].Data, "image bytes must not leak into the prompt")
}

func TestExecute_InputValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing user id", func(in *Input) { in.UserID = " " }},
		{"empty profile", func(in *Input) { in.Bio, in.Interests, in.Prompts = "", nil, nil }},
		{"too many photos", func(in *Input) { in.Photos = []Photo{photo("image/png"), photo("image/png"), photo("image/png")} }},
		{"unsupported mime", func(in *Input) { in.Photos = []Photo{photo("image/gif")} }},
		{"invalid base64", func(in *Input) { in.Photos = []Photo{{Data: "%%%", MimeType: "image/png"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := genaitest.Texts("gemini-test", validOutput)
			h := createTestHandler(t, fake, nil)
			input := createValidInput()
			tt.mutate(input)

			_, err := h.Execute(context.Background(), input)
			require.Error(t, err)
			stdErr, ok := err.(*errors.StandardError)
			require.True(t, ok, "error should be StandardError")
			assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
			assert.Equal(t, 0, fake.CallCount())
		})
	}
}

func TestExecute_CacheFollowsProfileContent(t *testing.T) {
	fake := genaitest.Texts("gemini-test", validOutput)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h := createTestHandler(t, fake, cache.NewRedisCache(client, logger.NewTestLogger(t)))

	_, err := h.Execute(context.Background(), createValidInput())
	require.NoError(t, err)
	resp, err := h.Execute(context.Background(), createValidInput())
	require.NoError(t, err)
	assert.True(t, resp.Meta.Cached)
	assert.Equal(t, 1, fake.CallCount())

	edited := createValidInput()
	edited.Bio = "Weekend climber now."
	resp, err = h.Execute(context.Background(), edited)
	require.NoError(t, err)
	assert.False(t, resp.Meta.Cached)
	assert.Equal(t, 2, fake.CallCount())

	other := createValidInput()
	other.UserID = "user-2"
	resp, err = h.Execute(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, resp.Meta.Cached)
}

func TestExecute_InvalidOutputFallsBack(t *testing.T) {
	fake := genaitest.Texts("gemini-test", `{"headline":"Hi","vibe":"x","traits":["One"],"conversationStarters":["Hey"]}`)
	h := createTestHandler(t, fake, nil)

	resp, err := h.Execute(context.Background(), createValidInput())
	require.NoError(t, err)
	assert.True(t, resp.Meta.UsedFallback)
	assert.GreaterOrEqual(t, len(resp.Data.Traits), 3)
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
		{"valid", validOutput, false},
		{"too few traits", `{"headline":"h","vibe":"v","traits":["a","b"],"conversationStarters":["s"]}`, true},
		{"too many traits", `{"headline":"h","vibe":"v","traits":["a","b","c","d","e","f","g"],"conversationStarters":["s"]}`, true},
		{"duplicate traits", `{"headline":"h","vibe":"v","traits":["Warm","warm ","Kind"],"conversationStarters":["s"]}`, true},
		{"no starters", `{"headline":"h","vibe":"v","traits":["a","b","c"],"conversationStarters":[]}`, true},
		{"blank headline", `{"headline":" ","vibe":"v","traits":["a","b","c"],"conversationStarters":["s"]}`, true},
		{"missing vibe", `{"headline":"h","traits":["a","b","c"],"conversationStarters":["s"]}`, true},
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
	job := createMockJob(7, map[string]interface{}{
		"userId":    "user-7",
		"bio":       "hello",
		"interests": []string{"jazz"},
		"photos":    []map[string]string{{"data": "abc", "mimeType": "image/png"}},
	})
	input, err := parseInput(job)
	require.NoError(t, err)
	assert.Equal(t, "user-7", input.UserID)
	assert.Equal(t, []string{"jazz"}, input.Interests)
	require.Len(t, input.Photos, 1)
	assert.Equal(t, "image/png", input.Photos[0].MimeType)
}
