package fallback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{
		"compatibility",
		"photo-verification",
		"practice-conversation",
		"summarize-text",
		"vibe-generation",
	}, Keys())
	assert.False(t, Has("conversation-feedback"))
}

func TestEveryFallbackIsValidJSON(t *testing.T) {
	for _, k := range Keys() {
		raw, ok := Get(k)
		require.True(t, ok)
		assert.True(t, json.Valid(raw), k)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	raw, ok := Get("summarize-text")
	require.True(t, ok)
	raw[0] = 'X'

	again, _ := Get("summarize-text")
	assert.True(t, json.Valid(again))
}

func TestDecode(t *testing.T) {
	type photo struct {
		Verified   bool    `json:"verified"`
		Confidence float64 `json:"confidence"`
	}
	p, err := Decode[photo]("photo-verification")
	require.NoError(t, err)
	assert.False(t, p.Verified)

	_, err = Decode[photo]("conversation-feedback")
	assert.ErrorIs(t, err, ErrNoFallback)
}
