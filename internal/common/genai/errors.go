package genai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindNetwork          Kind = "network"
	KindTimeout          Kind = "timeout"
	KindStatus           Kind = "status"
	KindContentPolicy    Kind = "content_policy"
	KindModelUnsupported Kind = "model_unsupported"
	KindInvalidRequest   Kind = "invalid_request"
	KindEmptyResponse    Kind = "empty_response"
)

// TransportError is the only error type returned by a Client.
type TransportError struct {
	Kind       Kind
	StatusCode int
	Model      string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("genai %s (model=%s, status=%d): %s", e.Kind, e.Model, e.StatusCode, msg)
	}
	return fmt.Sprintf("genai %s (model=%s): %s", e.Kind, e.Model, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a TransportError of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == kind
}

// IsModelUnsupported reports whether the upstream rejected the model itself.
func IsModelUnsupported(err error) bool {
	return IsKind(err, KindModelUnsupported)
}

// classifyDoError maps an error from the HTTP round trip.
func classifyDoError(ctx context.Context, model string, err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Model: model, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Model: model, Err: err}
	}
	return &TransportError{Kind: KindNetwork, Model: model, Err: err}
}

// classifyStatus maps a non-2xx response. providerStatus is the "status"
// field of the provider's error envelope, when present.
func classifyStatus(model string, code int, providerStatus, message string) *TransportError {
	kind := KindStatus
	switch {
	case code == 404 || providerStatus == "NOT_FOUND":
		kind = KindModelUnsupported
	case code == 400 || providerStatus == "INVALID_ARGUMENT":
		kind = KindInvalidRequest
	}
	return &TransportError{Kind: kind, StatusCode: code, Model: model, Message: message}
}
