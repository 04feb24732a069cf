package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// NoResponseText stands in for an empty completion. An empty completion is a
// success, not a failure.
const NoResponseText = "No response received"

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeFailure
)

// FailureKind classifies why a backend call failed.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"      // HTTP 408 / 504
	FailureRateLimited FailureKind = "rate_limited" // HTTP 429
	FailureAPI         FailureKind = "api_error"    // any other non-2xx
	FailureNetwork     FailureKind = "network"      // no HTTP response at all
)

// Outcome is the result of exactly one backend call: either a success with
// text or a failure with a human-readable reason. Build it with Success or
// Failed; it is never modified afterwards.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Failure FailureKind
	Reason  string
}

func Success(text string) Outcome {
	if text == "" {
		text = NoResponseText
	}
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

func Failed(kind FailureKind, reason string) Outcome {
	return Outcome{Kind: OutcomeFailure, Failure: kind, Reason: reason}
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Label renders a failure the way it is shown next to successful answers.
func (o Outcome) Label() string {
	if o.OK() {
		return o.Text
	}
	return fmt.Sprintf("Error: %s (unavailable)", o.Reason)
}

// StatusFailure maps a non-2xx HTTP status to a failure outcome.
func StatusFailure(status int) Outcome {
	switch status {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return Failed(FailureTimeout, "Request timeout")
	case http.StatusTooManyRequests:
		return Failed(FailureRateLimited, "Rate limit exceeded")
	default:
		return Failed(FailureAPI, fmt.Sprintf("API error (status %d)", status))
	}
}

// NetworkFailure is the outcome for calls that never got an HTTP response.
func NetworkFailure() Outcome {
	return Failed(FailureNetwork, "Network error or timeout")
}

// classify turns an SDK error into an Outcome. statusOf extracts the HTTP
// status when the error carries one.
func classify(err error, statusOf func(error) (int, bool)) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NetworkFailure()
	}
	if status, ok := statusOf(err); ok && status > 0 {
		return StatusFailure(status)
	}
	return NetworkFailure()
}
