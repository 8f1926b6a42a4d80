package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-workers/internal/common/logger"
)

const pngBase64 = "iVBORw0KGgo="

func createTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		Model:           "gemini-test",
		Temperature:     0.4,
		MaxOutputTokens: 256,
		Timeout:         2 * time.Second,
	}, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func textResponse(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + mustJSON(text) + `}]},"finishReason":"STOP"}]}`
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestNewClient_RequiresKeyAndModel(t *testing.T) {
	_, err := NewClient(Config{Model: "m"}, nil, nil)
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "k"}, nil, nil)
	assert.Error(t, err)
}

func TestGenerateText_Success(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(textResponse(`{"summary":"hi"}`)))
	}))
	defer server.Close()

	c := createTestClient(t, server.URL)
	out, err := c.GenerateText(context.Background(), "Role: x\nTask: y")
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"hi"}`, out)
	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 1)
	assert.Equal(t, "Role: x\nTask: y", captured.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.4, captured.GenerationConfig.Temperature)
	assert.Equal(t, 256, captured.GenerationConfig.MaxOutputTokens)
}

func TestGenerateMultimodal_ImagesInOrder(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(textResponse("ok")))
	}))
	defer server.Close()

	c := createTestClient(t, server.URL)
	_, err := c.GenerateMultimodal(context.Background(), "describe", []ImageInput{
		{Base64Data: pngBase64, MimeType: "image/png"},
		{Base64Data: "data:image/jpeg;base64," + pngBase64},
	})
	require.NoError(t, err)

	parts := captured.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "describe", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "image/jpeg", parts[2].InlineData.MimeType)
	assert.Equal(t, pngBase64, parts[2].InlineData.Data)
}

func TestGenerateMultimodal_RejectsBeforeCalling(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c := createTestClient(t, server.URL)

	tests := []struct {
		name   string
		images []ImageInput
	}{
		{"no images", nil},
		{"gif not allowed", []ImageInput{{Base64Data: pngBase64, MimeType: "image/gif"}}},
		{"empty data", []ImageInput{{Base64Data: "", MimeType: "image/png"}}},
		{"bad base64", []ImageInput{{Base64Data: "***", MimeType: "image/png"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GenerateMultimodal(context.Background(), "p", tt.images)
			assert.True(t, IsKind(err, KindInvalidRequest), "got %v", err)
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"404 model", 404, `{"error":{"code":404,"message":"models/x is not found","status":"NOT_FOUND"}}`, KindModelUnsupported},
		{"provider NOT_FOUND on 400", 400, `{"error":{"code":400,"message":"m","status":"NOT_FOUND"}}`, KindModelUnsupported},
		{"400 invalid", 400, `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`, KindInvalidRequest},
		{"429", 429, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, KindStatus},
		{"500 plain", 500, `oops`, KindStatus},
		{"prompt blocked", 200, `{"promptFeedback":{"blockReason":"SAFETY"}}`, KindContentPolicy},
		{"candidate blocked", 200, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`, KindContentPolicy},
		{"no candidates", 200, `{"candidates":[]}`, KindEmptyResponse},
		{"blank text", 200, textResponse("   "), KindEmptyResponse},
		{"not json", 200, `<html>`, KindEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := createTestClient(t, server.URL)
			_, err := c.GenerateText(context.Background(), "p")
			require.Error(t, err)

			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, "gemini-test", te.Model)
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := createTestClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.GenerateText(ctx, "p")
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestGenerate_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := createTestClient(t, url)
	_, err := c.GenerateText(context.Background(), "p")
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
}

func TestWithModel(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(textResponse("ok")))
	}))
	defer server.Close()

	base := createTestClient(t, server.URL)
	other := WithModel(base, "gemini-other")

	assert.Equal(t, "gemini-test", base.Model())
	assert.Equal(t, "gemini-other", other.Model())
	assert.Same(t, base, WithModel(base, ""))
	assert.Same(t, base, WithModel(base, "gemini-test"))

	_, err := other.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	_, err = base.GenerateText(context.Background(), "p")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/v1beta/models/gemini-other:generateContent",
		"/v1beta/models/gemini-test:generateContent",
	}, paths)
}

func TestTransportError_Message(t *testing.T) {
	err := &TransportError{Kind: KindStatus, StatusCode: 503, Model: "m", Message: "unavailable"}
	assert.True(t, strings.Contains(err.Error(), "503"))
	assert.True(t, strings.Contains(err.Error(), "unavailable"))
}
