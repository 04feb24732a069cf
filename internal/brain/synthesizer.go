package brain

import (
	"context"
	"log/slog"

	"lumen.app/companion/common/logger"
)

// Synthesizer reconciles the successful fan-out answers into one answer.
type Synthesizer struct {
	runner *chainRunner
	chain  Chain
}

func NewSynthesizer(invoker Invoker, sanitizer *Sanitizer, chain Chain) *Synthesizer {
	return &Synthesizer{
		runner: &chainRunner{invoker: invoker, sanitizer: sanitizer},
		chain:  chain,
	}
}

// Synthesize returns the synthesized answer and whether it had to degrade to
// the first successful response. successes must be non-empty and in request
// order.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, successes []Response, style Style) (string, bool) {
	sc := logger.StartSpan(ctx, "brain.synthesize")
	defer sc.End()
	ctx = sc.Context()

	if len(successes) == 0 {
		return "", true
	}

	text, backend, ok := s.runner.run(ctx, "synthesis", s.chain, synthesisMessages(prompt, successes, style), 0)
	if ok {
		slog.DebugContext(ctx, "synthesis complete", "backend", backend, "inputs", len(successes))
		return text, false
	}

	first := successes[0]
	slog.WarnContext(ctx, "synthesis chain exhausted, using first response",
		"backend", first.Backend,
		"primary", s.chain.Primary,
		"secondary", s.chain.Secondary)
	return s.runner.sanitizer.Sanitize(first.Text, 0), true
}
