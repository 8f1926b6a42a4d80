// Package genaitest provides a scripted genai.Client for tests.
package genaitest

import (
	"context"
	"fmt"
	"sync"

	"vibe-workers/internal/common/genai"
)

// Reply is one scripted upstream outcome.
type Reply struct {
	Text string
	Err  error
	// Block, when set, makes the call wait for ctx cancellation.
	Block bool
}

// Call records one invocation.
type Call struct {
	Model  string
	Prompt string
	Images int
}

// Fake replays Replies in order; once exhausted it repeats the last one.
// Clients derived through genai.WithModel share the script and the call log.
type Fake struct {
	model string
	state *fakeState
}

type fakeState struct {
	mu      sync.Mutex
	replies []Reply
	// perModel scripts take precedence for the named model.
	perModel map[string][]Reply
	calls    []Call
}

func New(model string, replies ...Reply) *Fake {
	return &Fake{model: model, state: &fakeState{replies: replies, perModel: map[string][]Reply{}}}
}

// Texts is shorthand for a script of successful replies.
func Texts(model string, texts ...string) *Fake {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return New(model, replies...)
}

// ScriptModel sets the replies served when the named model is used.
func (f *Fake) ScriptModel(model string, replies ...Reply) *Fake {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.perModel[model] = replies
	return f
}

func (f *Fake) Model() string { return f.model }

func (f *Fake) WithModel(model string) genai.Client {
	return &Fake{model: model, state: f.state}
}

func (f *Fake) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.next(ctx, prompt, 0)
}

func (f *Fake) GenerateMultimodal(ctx context.Context, prompt string, images []genai.ImageInput) (string, error) {
	return f.next(ctx, prompt, len(images))
}

// Calls returns a copy of the call log.
func (f *Fake) Calls() []Call {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	out := make([]Call, len(f.state.calls))
	copy(out, f.state.calls)
	return out
}

// CallCount returns the number of upstream calls made so far.
func (f *Fake) CallCount() int {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return len(f.state.calls)
}

func (f *Fake) next(ctx context.Context, prompt string, images int) (string, error) {
	f.state.mu.Lock()
	f.state.calls = append(f.state.calls, Call{Model: f.model, Prompt: prompt, Images: images})

	script := f.state.replies
	scripted, perModel := f.state.perModel[f.model]
	if perModel {
		script = scripted
	}
	var r Reply
	switch {
	case len(script) == 0:
		r = Reply{Err: &genai.TransportError{Kind: genai.KindEmptyResponse, Model: f.model, Message: "no scripted reply"}}
	default:
		r = script[0]
		if len(script) > 1 {
			script = script[1:]
		}
		if perModel {
			f.state.perModel[f.model] = script
		} else {
			f.state.replies = script
		}
	}
	f.state.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return "", &genai.TransportError{Kind: genai.KindTimeout, Model: f.model, Err: ctx.Err()}
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// ModelUnsupported builds the error a real client returns for an unknown model.
func ModelUnsupported(model string) error {
	return &genai.TransportError{Kind: genai.KindModelUnsupported, StatusCode: 404, Model: model, Message: fmt.Sprintf("models/%s is not found", model)}
}

// Status builds a generic upstream status error.
func Status(model string, code int) error {
	return &genai.TransportError{Kind: genai.KindStatus, StatusCode: code, Model: model, Message: "upstream error"}
}
