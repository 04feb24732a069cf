package brain

import (
	"fmt"
	"strings"

	"lumen.app/companion/common/llm"
)

const rationalPersona = `You are Lumen, a thoughtful companion. Answer clearly and logically.
Explain your reasoning in plain words, stay concise, and avoid lists unless they help.`

const emotionalPersona = `You are Lumen, a warm and caring companion. Answer with empathy.
Acknowledge how the person might feel, speak gently, and stay concise.`

func persona(style Style) string {
	if style == StyleEmotional {
		return emotionalPersona
	}
	return rationalPersona
}

// fanOutMessages wraps the prompt as a single-turn conversation.
func fanOutMessages(prompt string, style Style) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: persona(style)},
		{Role: llm.RoleUser, Content: prompt},
	}
}

// singleMessages forwards history in its original order, then the prompt.
func singleMessages(prompt string, history []llm.Message, style Style) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: persona(style)})
	msgs = append(msgs, history...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
}

// synthesisMessages renders the responses in the order given, which is the
// caller's requested order.
func synthesisMessages(prompt string, responses []Response, style Style) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question:\n%s\n\n", prompt)
	sb.WriteString("Several assistants answered this question independently.\n\n")
	for i, r := range responses {
		fmt.Fprintf(&sb, "Response %d (%s):\n%s\n\n", i+1, r.Backend, r.Text)
	}
	sb.WriteString(`Combine these into one balanced answer. Keep what they agree on,
reconcile where they disagree, and drop anything unsupported.
Do not mention the responses, their sources, or any model names.`)

	tone := "Keep the tone clear and reasoned."
	if style == StyleEmotional {
		tone = "Keep the tone warm and supportive."
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You merge several answers into a single answer. " + tone},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

func humanizeMessages(answer string, style Style, maxWords int) []llm.Message {
	tone := "friendly and grounded"
	if style == StyleEmotional {
		tone = "warm and gentle"
	}
	instruction := fmt.Sprintf(`Rewrite the answer below for a friend.
Rules:
- one flowing paragraph, no lists, no headings
- no colons and no dashes
- a %s tone
- end with one open question related to the content
- at most %d words in total, count them before you reply

Answer:
%s`, tone, maxWords, answer)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: persona(style)},
		{Role: llm.RoleUser, Content: instruction},
	}
}
