package brain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// questionLookback is how many words before the cut point are searched for a
// question mark when a response is truncated.
const questionLookback = 15

// DefaultReasoningTags are the hidden-reasoning wrappers emitted by the
// backends we talk to.
var DefaultReasoningTags = []string{"think", "thinking", "reasoning", "reflection", "thought", "scratchpad"}

// brandPattern matches a provider or model family name plus an optional
// version suffix ("gpt-4o", "qwen3-32b", "claude-3.5-sonnet"). A bare word
// continuation is not a suffix, so "llamas" is left alone. Family names that
// are also dictionary words only match with a version, a vendor prefix or a
// trailing "AI" ("Llama 3", "mistral-large", "Mistral AI", "Google Bard").
const brandPattern = `(?:` + distinctBrands + `|` + wordBrands + `)`

const (
	brandSuffix    = `(?:[-.]?\d\w*|-[a-z0-9]+)*`
	distinctBrands = `(?:chat\s?gpt|gpt|openai|claude|anthropic|gemini|mixtral|qwen|deepseek)` + brandSuffix
	wordBrands     = `(?:(?:google\s+bard|meta\s+llama|xai\s+grok|moonshot\s+kimi)|` +
		`(?:llama|mistral|grok|bard|kimi)(?:[-. ]?\d+(?:\.\d+)*[a-z0-9]*|-[a-z][a-z0-9]*|\s+ai\b))` + brandSuffix
)

// leadInSubject is who an answer gets attributed to. Only brands chain into
// lists ("GPT-4 and Claude", "Qwen, Llama 3 and Gemini").
const leadInSubject = `(?:the\s+)?(?:` + brandPattern + `|(?:other\s+)?(?:ai\s+)?models?|ai|assistants?)(?:'s)?` +
	`(?:(?:\s*,\s*(?:and\s+)?|\s+(?:and|&)\s+)(?:the\s+)?` + brandPattern + `(?:'s)?)*`

// DefaultDenylist removes synthesis artifacts that name the models behind an
// answer. Lead-in phrases come first so the bare brand pattern does not leave
// "according to ," behind.
var DefaultDenylist = []string{
	`(?i)\b(?:according to|per|as (?:stated|noted|mentioned|suggested) by|based on)\s+` + leadInSubject + `(?:\s+(?:responses?|answers?|model))?\s*,?\s*`,
	`(?i)\b(?:one|another|the other) (?:model|ai|assistant) (?:said|says|suggested|suggests|noted|notes)(?: that)?\s*,?\s*`,
	`(?i)\b` + brandPattern + `(?:'s)?\b`,
}

var (
	dashPattern        = regexp.MustCompile(`-{2,}|—`)
	spaceBeforePunct   = regexp.MustCompile(`[ \t]+([,.!?;])`)
	leadingPunct       = regexp.MustCompile(`^[\s,;]+`)
	commaAfterSentence = regexp.MustCompile(`([.!?])[ \t]*[,;]+[ \t]*`)
	horizontalSpace    = regexp.MustCompile(`[ \t\f\v\r]+`)
	spaceAroundNewline = regexp.MustCompile(` *\n *`)
	excessNewlines     = regexp.MustCompile(`\n{3,}`)
	gluedSentence      = regexp.MustCompile(`([a-z])\.([A-Z][a-z])`)
	sentenceStart      = regexp.MustCompile(`(?:^|\.\s+)\p{Ll}`)
)

// Sanitizer cleans model output before it reaches a user or a later pipeline
// stage. It is safe for concurrent use.
type Sanitizer struct {
	reasoning []*regexp.Regexp
	denylist  []*regexp.Regexp
}

// NewSanitizer compiles the reasoning tag set and denylist patterns. Empty
// arguments select the defaults.
func NewSanitizer(reasoningTags, denylist []string) (*Sanitizer, error) {
	if len(reasoningTags) == 0 {
		reasoningTags = DefaultReasoningTags
	}
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}

	s := &Sanitizer{}
	for _, tag := range reasoningTags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		name := regexp.QuoteMeta(tag)
		re, err := regexp.Compile(`(?is)<\s*` + name + `\b[^>]*>.*?<\s*/\s*` + name + `\s*>`)
		if err != nil {
			return nil, fmt.Errorf("compiling reasoning tag %q: %w", tag, err)
		}
		s.reasoning = append(s.reasoning, re)
	}
	for _, pattern := range denylist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling denylist pattern %q: %w", pattern, err)
		}
		s.denylist = append(s.denylist, re)
	}
	return s, nil
}

// MustSanitizer is NewSanitizer for the built-in defaults, which always compile.
func MustSanitizer() *Sanitizer {
	s, err := NewSanitizer(nil, nil)
	if err != nil {
		panic(err)
	}
	return s
}

// Sanitize applies the cleanup steps in order. maxWords <= 0 disables the word
// cap. Empty input is returned as is so "no response" stays distinguishable
// from "empty after cleaning".
func (s *Sanitizer) Sanitize(text string, maxWords int) string {
	if text == "" {
		return text
	}

	out := s.stripReasoning(text)
	out = dashPattern.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, ":", "")
	out = s.scrubDenylist(out)
	out = normalizeWhitespace(out)
	out = capitalizeSentences(out)

	if maxWords > 0 {
		out = truncateWords(out, maxWords)
	}
	return out
}

func (s *Sanitizer) stripReasoning(text string) string {
	out := text
	for _, re := range s.reasoning {
		out = re.ReplaceAllString(out, "")
	}
	if strings.TrimSpace(out) == "" {
		return text
	}
	return out
}

func (s *Sanitizer) scrubDenylist(text string) string {
	out := text
	for _, re := range s.denylist {
		out = re.ReplaceAllString(out, "")
	}
	if out == text {
		return out
	}
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = commaAfterSentence.ReplaceAllString(out, "$1 ")
	return leadingPunct.ReplaceAllString(out, "")
}

func normalizeWhitespace(text string) string {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	out = horizontalSpace.ReplaceAllString(out, " ")
	out = spaceAroundNewline.ReplaceAllString(out, "\n")
	out = excessNewlines.ReplaceAllString(out, "\n\n")
	out = gluedSentence.ReplaceAllString(out, "$1. $2")
	return strings.TrimSpace(out)
}

func capitalizeSentences(text string) string {
	return sentenceStart.ReplaceAllStringFunc(text, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})
}

// truncateWords cuts text to at most max words. A question mark within the
// last questionLookback words wins over the hard cut so the answer still ends
// on its question. The cut is a prefix of text, so paragraph breaks survive.
func truncateWords(text string, max int) string {
	spans := wordSpans(text)
	if len(spans) <= max {
		return text
	}

	cut := spans[:max]
	for i := len(cut) - 1; i >= 0 && i >= len(cut)-questionLookback; i-- {
		word := text[cut[i][0]:cut[i][1]]
		if idx := strings.LastIndex(word, "?"); idx >= 0 {
			return text[:cut[i][0]+idx+1]
		}
	}

	out := strings.TrimRight(text[:cut[max-1][1]], ",;")
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}

// wordSpans returns the byte offsets of each whitespace-separated word, split
// the same way strings.Fields splits.
func wordSpans(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
		case start < 0:
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
