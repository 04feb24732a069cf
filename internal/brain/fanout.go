package brain

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
)

// Invoker calls one backend by id. *llm.Registry implements it.
type Invoker interface {
	Invoke(ctx context.Context, id string, inv llm.Invocation) llm.Outcome
}

// Response is one backend's settled answer in a fan-out. Text is the
// sanitized answer on success and the "(unavailable)" label on failure.
type Response struct {
	Backend  string
	Outcome  llm.Outcome
	Text     string
	Duration time.Duration
}

func (r Response) OK() bool {
	return r.Outcome.OK()
}

type FanOut struct {
	invoker   Invoker
	sanitizer *Sanitizer
}

func NewFanOut(invoker Invoker, sanitizer *Sanitizer) *FanOut {
	return &FanOut{invoker: invoker, sanitizer: sanitizer}
}

// Run invokes every backend concurrently with the same single-turn
// conversation and waits for all of them to settle. Responses come back in
// the order of backends, whatever order the calls finish in.
func (f *FanOut) Run(ctx context.Context, prompt string, backends []string, style Style) []Response {
	sc := logger.StartSpan(ctx, "brain.fan_out")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		attribute.Int("companion.backends", len(backends)),
		attribute.String("companion.style", string(style)),
	)

	messages := fanOutMessages(prompt, style)
	results := make([]Response, len(backends))

	// Goroutines never return an error so one failure cannot cancel siblings.
	var g errgroup.Group
	for i, id := range backends {
		g.Go(func() error {
			start := time.Now()
			outcome := f.invoker.Invoke(ctx, id, llm.Invocation{Messages: messages})
			results[i] = f.settle(id, outcome, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.OK() {
			slog.DebugContext(ctx, "backend answered",
				"backend", r.Backend,
				"duration_ms", r.Duration.Milliseconds(),
				"words", WordCount(r.Text))
			continue
		}
		slog.WarnContext(ctx, "backend unavailable",
			"backend", r.Backend,
			"failure", r.Outcome.Failure,
			"reason", r.Outcome.Reason,
			"duration_ms", r.Duration.Milliseconds())
	}

	return results
}

func (f *FanOut) settle(id string, outcome llm.Outcome, took time.Duration) Response {
	r := Response{Backend: id, Outcome: outcome, Duration: took}
	if outcome.OK() {
		r.Text = f.sanitizer.Sanitize(outcome.Text, 0)
		if r.Text == "" {
			r.Text = llm.NoResponseText
		}
	} else {
		r.Text = outcome.Label()
	}
	return r
}

// dedupe keeps the first occurrence of each id and drops blanks.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
