package brain

import (
	"context"
	"log/slog"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
)

// DefaultMaxWords caps humanized answers, trailing question included.
const DefaultMaxWords = 100

// Humanizer rewrites a synthesized answer into a short warm paragraph that
// ends on a question.
type Humanizer struct {
	runner   *chainRunner
	chain    Chain
	maxWords int
}

func NewHumanizer(invoker Invoker, sanitizer *Sanitizer, chain Chain, maxWords int) *Humanizer {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &Humanizer{
		runner:   &chainRunner{invoker: invoker, sanitizer: sanitizer},
		chain:    chain,
		maxWords: maxWords,
	}
}

// Humanize returns the rewritten answer and whether it degraded to a
// truncated copy of the input. The word cap is enforced here, not trusted to
// the model.
func (h *Humanizer) Humanize(ctx context.Context, answer string, style Style) (string, bool) {
	sc := logger.StartSpan(ctx, "brain.humanize")
	defer sc.End()
	ctx = sc.Context()

	text, backend, ok := h.runner.run(ctx, "humanize", h.chain, humanizeMessages(answer, style, h.maxWords), h.maxWords)
	if ok {
		slog.DebugContext(ctx, "humanize complete", "backend", backend, "words", WordCount(text))
		return text, false
	}

	slog.WarnContext(ctx, "humanize chain exhausted, truncating synthesized answer",
		"primary", h.chain.Primary,
		"secondary", h.chain.Secondary)

	fallback := h.runner.sanitizer.Sanitize(answer, h.maxWords)
	if fallback == "" {
		fallback = llm.NoResponseText
	}
	return fallback, true
}
