// Package fallback holds the static safe responses served when live
// generation is exhausted. Each value must satisfy the output schema of its
// use case; the use-case packages assert that in their tests.
package fallback

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrNoFallback = errors.New("NO_FALLBACK_REGISTERED")

// Keys match the prompt template and worker task type names.
var registry = map[string]json.RawMessage{
	"summarize-text": json.RawMessage(`{
		"summary": "A summary isn't available right now. Please try again in a moment."
	}`),
	"vibe-generation": json.RawMessage(`{
		"headline": "Good energy, great company",
		"vibe": "Easygoing and curious, always up for discovering something new with the right person.",
		"traits": ["Curious", "Warm", "Easygoing"],
		"conversationStarters": [
			"What's something you've been excited about lately?",
			"What does your ideal weekend look like?"
		]
	}`),
	"compatibility": json.RawMessage(`{
		"score": 0.5,
		"narrative": "You two have enough in common to find out more. Start with what you both love and see where it goes.",
		"sharedInterests": []
	}`),
	"practice-conversation": json.RawMessage(`{
		"reply": "Ha, tell me more about that!",
		"tip": "Ask an open question to keep the conversation flowing."
	}`),
	"photo-verification": json.RawMessage(`{
		"verified": false,
		"confidence": 0,
		"reason": "Automatic verification is unavailable, so the photos were sent for manual review."
	}`),
}

// Get returns the fallback document for useCase.
func Get(useCase string) (json.RawMessage, bool) {
	v, ok := registry[useCase]
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, true
}

// Has reports whether useCase has a fallback.
func Has(useCase string) bool {
	_, ok := registry[useCase]
	return ok
}

// Keys lists the use cases with a fallback, sorted.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode unmarshals the fallback for useCase into T.
func Decode[T any](useCase string) (T, error) {
	var out T
	raw, ok := registry[useCase]
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrNoFallback, useCase)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("fallback %s: %w", useCase, err)
	}
	return out, nil
}
