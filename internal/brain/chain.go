package brain

import (
	"context"
	"log/slog"

	"lumen.app/companion/common/llm"
)

// Chain is an ordered fallback pair. Secondary may be empty.
type Chain struct {
	Primary   string
	Secondary string
}

func (c Chain) backends() []string {
	return dedupe([]string{c.Primary, c.Secondary})
}

// chainRunner walks a Chain until one backend produces non-empty sanitized
// text. Failing backends are skipped, never retried.
type chainRunner struct {
	invoker   Invoker
	sanitizer *Sanitizer
}

func (r *chainRunner) run(ctx context.Context, stage string, chain Chain, messages []llm.Message, maxWords int) (string, string, bool) {
	for _, id := range chain.backends() {
		outcome := r.invoker.Invoke(ctx, id, llm.Invocation{Messages: messages})
		if !outcome.OK() {
			slog.WarnContext(ctx, "chain backend failed, falling through",
				"stage", stage,
				"backend", id,
				"failure", outcome.Failure,
				"reason", outcome.Reason)
			continue
		}

		text := r.sanitizer.Sanitize(outcome.Text, maxWords)
		if text == "" {
			slog.WarnContext(ctx, "chain backend returned blank text, falling through",
				"stage", stage,
				"backend", id)
			continue
		}
		return text, id, true
	}
	return "", "", false
}
