package brain

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
)

// Stage is a pipeline state. Failed is reachable only from FanningOut.
type Stage string

const (
	StageStarted      Stage = "started"
	StageFanningOut   Stage = "fanning_out"
	StageSynthesizing Stage = "synthesizing"
	StageHumanizing   Stage = "humanizing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Profile parameterizes a pipeline for one call site.
type Profile struct {
	Name      string
	Backends  []string
	Synthesis Chain
	Humanize  Chain
	MaxWords  int
}

type DiscussRequest struct {
	Prompt   string
	Backends []string // empty selects the profile's backends
	Style    Style

	// OnStage, if set, is called synchronously on every transition.
	OnStage func(Stage)
}

type SingleRequest struct {
	Backend string
	Prompt  string
	History []llm.Message
	Style   Style
}

type Degradation struct {
	Synthesis bool
	Humanize  bool
}

// Result is the outcome of one discussion. It is not modified after Discuss
// returns it.
type Result struct {
	InitialResponses  map[string]string
	Order             []string
	SynthesizedAnswer string
	HumanizedAnswer   string
	Elapsed           time.Duration
	Degraded          Degradation
}

// Pipeline runs fan-out, synthesis and humanization for one profile.
type Pipeline struct {
	profile     Profile
	invoker     Invoker
	sanitizer   *Sanitizer
	fanOut      *FanOut
	synthesizer *Synthesizer
	humanizer   *Humanizer
	runner      *chainRunner
}

func NewPipeline(profile Profile, invoker Invoker, sanitizer *Sanitizer) *Pipeline {
	if profile.MaxWords <= 0 {
		profile.MaxWords = DefaultMaxWords
	}
	return &Pipeline{
		profile:     profile,
		invoker:     invoker,
		sanitizer:   sanitizer,
		fanOut:      NewFanOut(invoker, sanitizer),
		synthesizer: NewSynthesizer(invoker, sanitizer, profile.Synthesis),
		humanizer:   NewHumanizer(invoker, sanitizer, profile.Humanize, profile.MaxWords),
		runner:      &chainRunner{invoker: invoker, sanitizer: sanitizer},
	}
}

func (p *Pipeline) Profile() Profile {
	return p.profile
}

// Discuss runs the full discussion. The only error after fan-out starts is
// *AllBackendsFailedError; every later stage degrades instead of failing.
func (p *Pipeline) Discuss(ctx context.Context, req DiscussRequest) (*Result, error) {
	start := time.Now()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Profile:   logger.Ptr(p.profile.Name),
		Component: "companion.brain.pipeline",
	})

	sc := logger.StartSpan(ctx, "brain.discuss")
	defer sc.End()
	ctx = sc.Context()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	backends := req.Backends
	if len(backends) == 0 {
		backends = p.profile.Backends
	}
	backends = dedupe(backends)
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	style := req.Style
	if !style.Valid() {
		style = StyleRational
	}

	transition := func(s Stage, args ...any) {
		slog.InfoContext(ctx, "pipeline stage", append([]any{"stage", s}, args...)...)
		if req.OnStage != nil {
			req.OnStage(s)
		}
	}

	transition(StageStarted, "backends", backends, "style", style, "prompt", logger.Truncate(prompt, 120))
	transition(StageFanningOut)

	responses := p.fanOut.Run(ctx, prompt, backends, style)

	result := &Result{
		InitialResponses: make(map[string]string, len(responses)),
		Order:            backends,
	}
	var successes []Response
	failures := make(map[string]string)
	for _, r := range responses {
		result.InitialResponses[r.Backend] = r.Text
		if r.OK() {
			successes = append(successes, r)
		} else {
			failures[r.Backend] = r.Outcome.Reason
		}
	}

	if len(successes) == 0 {
		err := &AllBackendsFailedError{Failures: failures}
		sc.RecordError(err)
		transition(StageFailed, "elapsed_ms", time.Since(start).Milliseconds())
		slog.ErrorContext(ctx, "discussion failed", "error", err)
		return nil, err
	}

	transition(StageSynthesizing, "successes", len(successes), "failures", len(failures))
	result.SynthesizedAnswer, result.Degraded.Synthesis = p.synthesizer.Synthesize(ctx, prompt, successes, style)

	transition(StageHumanizing, "synthesis_degraded", result.Degraded.Synthesis)
	result.HumanizedAnswer, result.Degraded.Humanize = p.humanizer.Humanize(ctx, result.SynthesizedAnswer, style)

	result.Elapsed = time.Since(start)
	transition(StageDone,
		"elapsed_ms", result.Elapsed.Milliseconds(),
		"humanize_degraded", result.Degraded.Humanize)

	return result, nil
}

// Single runs single-backend mode. History order is preserved.
func (p *Pipeline) Single(ctx context.Context, req SingleRequest) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Profile:   logger.Ptr(p.profile.Name),
		Component: "companion.brain.pipeline",
	})

	sc := logger.StartSpan(ctx, "brain.single")
	defer sc.End()
	ctx = sc.Context()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	style := req.Style
	if !style.Valid() {
		style = StyleRational
	}

	start := time.Now()
	outcome := p.invoker.Invoke(ctx, req.Backend, llm.Invocation{
		Messages: singleMessages(prompt, req.History, style),
	})
	if !outcome.OK() {
		err := &BackendError{Backend: req.Backend, Kind: outcome.Failure, Reason: outcome.Reason}
		sc.RecordError(err)
		slog.WarnContext(ctx, "single backend failed",
			"backend", req.Backend,
			"failure", outcome.Failure,
			"reason", outcome.Reason,
			"duration_ms", time.Since(start).Milliseconds())
		return "", err
	}

	text := p.sanitizer.Sanitize(outcome.Text, 0)
	if text == "" {
		text = llm.NoResponseText
	}
	slog.InfoContext(ctx, "single backend answered",
		"backend", req.Backend,
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Complete runs messages through a fallback chain and sanitizes the answer.
// It reports false when every backend in the chain failed.
func (p *Pipeline) Complete(ctx context.Context, chain Chain, messages []llm.Message, maxWords int) (string, bool) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Profile:   logger.Ptr(p.profile.Name),
		Component: "companion.brain.pipeline",
	})
	text, _, ok := p.runner.run(ctx, "complete", chain, messages, maxWords)
	return text, ok
}

// Sanitizer exposes the pipeline's sanitizer for callers that post-process
// their own text.
func (p *Pipeline) Sanitizer() *Sanitizer {
	return p.sanitizer
}
