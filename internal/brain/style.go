package brain

import (
	"strings"
	"unicode"
)

// Style governs prompt framing only. It is chosen once per conversation.
type Style string

const (
	StyleRational  Style = "rational"
	StyleEmotional Style = "emotional"
)

func (s Style) Valid() bool {
	return s == StyleRational || s == StyleEmotional
}

// ParseStyle accepts the style names case-insensitively.
func ParseStyle(raw string) (Style, bool) {
	s := Style(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

var (
	emotionalWords = map[string]bool{
		"feel": true, "feeling": true, "feelings": true, "heart": true, "love": true,
		"sorry": true, "hug": true, "comfort": true, "warm": true, "care": true,
		"emotion": true, "emotions": true, "lonely": true, "happy": true, "sad": true,
	}
	rationalWords = map[string]bool{
		"analyze": true, "analysis": true, "logic": true, "logical": true, "data": true,
		"evidence": true, "reason": true, "fact": true, "facts": true, "consider": true,
		"research": true, "study": true, "because": true, "therefore": true,
	}
)

// InferStyle guesses a style from the last assistant turn by counting
// emotional against analytical vocabulary. Ties and empty input are rational.
// It is only consulted when the conversation has no explicit choice.
func InferStyle(lastAssistant string) Style {
	var emotional, rational int
	for _, w := range strings.FieldsFunc(strings.ToLower(lastAssistant), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if emotionalWords[w] {
			emotional++
		}
		if rationalWords[w] {
			rational++
		}
	}
	if emotional > rational {
		return StyleEmotional
	}
	return StyleRational
}

// ResolveStyle picks the explicit choice when there is one, otherwise infers
// it from the last assistant turn.
func ResolveStyle(explicit Style, lastAssistant string) Style {
	if explicit.Valid() {
		return explicit
	}
	return InferStyle(lastAssistant)
}
