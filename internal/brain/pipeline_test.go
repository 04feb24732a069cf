package brain_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/internal/brain"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockInvoker implements brain.Invoker for testing. It is called from
// several goroutines at once during fan-out.
type mockInvoker struct {
	mu       sync.Mutex
	calls    map[string]int
	messages map[string][]llm.Message
	invokeFn func(ctx context.Context, id string, inv llm.Invocation) llm.Outcome
}

func newMockInvoker(fn func(ctx context.Context, id string, inv llm.Invocation) llm.Outcome) *mockInvoker {
	return &mockInvoker{
		calls:    make(map[string]int),
		messages: make(map[string][]llm.Message),
		invokeFn: fn,
	}
}

func (m *mockInvoker) Invoke(ctx context.Context, id string, inv llm.Invocation) llm.Outcome {
	m.mu.Lock()
	m.calls[id]++
	m.messages[id] = inv.Messages
	m.mu.Unlock()
	return m.invokeFn(ctx, id, inv)
}

func (m *mockInvoker) callCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func (m *mockInvoker) lastUserTurn(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[id]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

// replies answers each backend id with a fixed outcome.
func replies(outcomes map[string]llm.Outcome) func(context.Context, string, llm.Invocation) llm.Outcome {
	return func(_ context.Context, id string, _ llm.Invocation) llm.Outcome {
		if o, ok := outcomes[id]; ok {
			return o
		}
		return llm.Failed(llm.FailureAPI, "unknown backend")
	}
}

var testProfile = brain.Profile{
	Name:      "discussion",
	Backends:  []string{"groq/a", "groq/b", "groq/c"},
	Synthesis: brain.Chain{Primary: "synth/primary", Secondary: "synth/secondary"},
	Humanize:  brain.Chain{Primary: "human/primary", Secondary: "human/secondary"},
	MaxWords:  100,
}

var _ = Describe("Pipeline", func() {
	var (
		ctx       context.Context
		sanitizer *brain.Sanitizer
		outcomes  map[string]llm.Outcome
		invoker   *mockInvoker
		pipeline  *brain.Pipeline
		stages    []brain.Stage
	)

	BeforeEach(func() {
		ctx = context.Background()
		sanitizer = brain.MustSanitizer()
		stages = nil
		outcomes = map[string]llm.Outcome{
			"groq/a":          llm.Success("The sky is blue."),
			"groq/b":          llm.Success("Skies appear blue due to Rayleigh scattering."),
			"groq/c":          llm.StatusFailure(504),
			"synth/primary":   llm.Success("<think>merge them</think>according to GPT-4, blue light scatters more than red."),
			"synth/secondary": llm.Success("Secondary synthesis."),
			"human/primary":   llm.Success("Blue light scatters more, which paints the sky. What color do you love most?"),
			"human/secondary": llm.Success("Secondary humanized. Why?"),
		}
		invoker = newMockInvoker(replies(outcomes))
		pipeline = brain.NewPipeline(testProfile, invoker, sanitizer)
	})

	discuss := func() (*brain.Result, error) {
		return pipeline.Discuss(ctx, brain.DiscussRequest{
			Prompt:  "Why is the sky blue?",
			OnStage: func(s brain.Stage) { stages = append(stages, s) },
		})
	}

	Describe("Discuss", func() {
		It("labels failures and synthesizes the successes", func() {
			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())

			Expect(res.InitialResponses).To(HaveLen(3))
			Expect(res.InitialResponses["groq/a"]).To(Equal("The sky is blue."))
			Expect(res.InitialResponses["groq/b"]).To(Equal("Skies appear blue due to Rayleigh scattering."))
			Expect(res.InitialResponses["groq/c"]).To(HaveSuffix("(unavailable)"))
			Expect(res.Order).To(Equal(testProfile.Backends))

			Expect(res.SynthesizedAnswer).To(Equal("Blue light scatters more than red."))
			Expect(res.HumanizedAnswer).To(Equal("Blue light scatters more, which paints the sky. What color do you love most?"))
			Expect(res.Degraded).To(Equal(brain.Degradation{}))
			Expect(res.Elapsed).To(BeNumerically(">", 0))
		})

		It("walks the stages in order", func() {
			_, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(stages).To(Equal([]brain.Stage{
				brain.StageStarted, brain.StageFanningOut, brain.StageSynthesizing, brain.StageHumanizing, brain.StageDone,
			}))
		})

		It("leaves failure labels out of the synthesis prompt", func() {
			_, err := discuss()
			Expect(err).NotTo(HaveOccurred())

			prompt := invoker.lastUserTurn("synth/primary")
			Expect(prompt).To(ContainSubstring("Why is the sky blue?"))
			Expect(prompt).To(ContainSubstring("groq/a"))
			Expect(prompt).To(ContainSubstring("groq/b"))
			Expect(prompt).NotTo(ContainSubstring("groq/c"))
			Expect(prompt).NotTo(ContainSubstring("unavailable"))
		})

		It("renders the synthesis prompt in request order, not arrival order", func() {
			invoker.invokeFn = func(ctx context.Context, id string, inv llm.Invocation) llm.Outcome {
				if id == "groq/a" {
					time.Sleep(30 * time.Millisecond)
				}
				return replies(outcomes)(ctx, id, inv)
			}

			_, err := discuss()
			Expect(err).NotTo(HaveOccurred())

			prompt := invoker.lastUserTurn("synth/primary")
			Expect(strings.Index(prompt, "groq/a")).To(BeNumerically("<", strings.Index(prompt, "groq/b")))
		})

		It("calls the backends concurrently", func() {
			invoker.invokeFn = func(ctx context.Context, id string, inv llm.Invocation) llm.Outcome {
				if strings.HasPrefix(id, "groq/") {
					time.Sleep(150 * time.Millisecond)
				}
				return replies(outcomes)(ctx, id, inv)
			}

			start := time.Now()
			_, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 400*time.Millisecond))
		})

		It("fails only when every backend fails", func() {
			for _, id := range testProfile.Backends {
				outcomes[id] = llm.NetworkFailure()
			}

			res, err := discuss()
			Expect(res).To(BeNil())
			Expect(errors.Is(err, brain.ErrAllBackendsFailed)).To(BeTrue())

			var failed *brain.AllBackendsFailedError
			Expect(errors.As(err, &failed)).To(BeTrue())
			Expect(failed.Failures).To(HaveLen(3))
			Expect(stages).To(Equal([]brain.Stage{brain.StageStarted, brain.StageFanningOut, brain.StageFailed}))
			Expect(invoker.callCount("synth/primary")).To(Equal(0))
		})

		It("succeeds with a single surviving backend", func() {
			outcomes["groq/a"] = llm.StatusFailure(429)

			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.InitialResponses).To(HaveLen(3))
			Expect(res.InitialResponses["groq/a"]).To(Equal("Error: Rate limit exceeded (unavailable)"))
			Expect(res.SynthesizedAnswer).NotTo(BeEmpty())
		})

		It("uses the secondary synthesis backend when the primary fails", func() {
			outcomes["synth/primary"] = llm.StatusFailure(429)

			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.SynthesizedAnswer).To(Equal(sanitizer.Sanitize("Secondary synthesis.", 0)))
			Expect(res.Degraded.Synthesis).To(BeFalse())
			Expect(invoker.callCount("synth/secondary")).To(Equal(1))
		})

		It("falls back to the first successful response when synthesis is down", func() {
			outcomes["groq/a"] = llm.StatusFailure(500)
			outcomes["synth/primary"] = llm.StatusFailure(500)
			outcomes["synth/secondary"] = llm.NetworkFailure()

			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.SynthesizedAnswer).To(Equal("Skies appear blue due to Rayleigh scattering."))
			Expect(res.Degraded.Synthesis).To(BeTrue())
		})

		It("uses the secondary humanizer when the primary fails", func() {
			outcomes["human/primary"] = llm.StatusFailure(504)

			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.HumanizedAnswer).To(Equal("Secondary humanized. Why?"))
			Expect(res.Degraded.Humanize).To(BeFalse())
		})

		It("truncates the synthesized answer when humanizing fails", func() {
			long := strings.TrimSpace(strings.Repeat("Light bends in the air ", 30)) // 150 words
			outcomes["synth/primary"] = llm.Success(long)
			outcomes["human/primary"] = llm.StatusFailure(429)
			outcomes["human/secondary"] = llm.NetworkFailure()

			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(brain.WordCount(res.SynthesizedAnswer)).To(Equal(150))

			Expect(res.HumanizedAnswer).NotTo(BeEmpty())
			Expect(brain.WordCount(res.HumanizedAnswer)).To(BeNumerically("<=", 100))
			Expect(res.SynthesizedAnswer).To(HavePrefix(strings.TrimSuffix(res.HumanizedAnswer, ".")))
			Expect(res.Degraded.Humanize).To(BeTrue())
		})

		It("caps a verbose humanizer at the profile word limit", func() {
			outcomes["human/primary"] = llm.Success(strings.Repeat("so many words here ", 50) + "Right?")

			res, err := discuss()
			Expect(err).NotTo(HaveOccurred())
			Expect(brain.WordCount(res.HumanizedAnswer)).To(BeNumerically("<=", 100))
		})

		It("keeps one entry per requested backend when ids repeat", func() {
			res, err := pipeline.Discuss(ctx, brain.DiscussRequest{
				Prompt:   "hello",
				Backends: []string{"groq/a", "groq/b", "groq/a"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.InitialResponses).To(HaveLen(2))
			Expect(res.Order).To(Equal([]string{"groq/a", "groq/b"}))
			Expect(invoker.callCount("groq/a")).To(Equal(1))
		})

		It("rejects an empty prompt before calling any backend", func() {
			_, err := pipeline.Discuss(ctx, brain.DiscussRequest{Prompt: "   "})
			Expect(err).To(MatchError(brain.ErrEmptyPrompt))
			Expect(invoker.callCount("groq/a")).To(Equal(0))
		})

		It("frames the fan-out with the requested style", func() {
			_, err := pipeline.Discuss(ctx, brain.DiscussRequest{Prompt: "I had a rough day", Style: brain.StyleEmotional})
			Expect(err).NotTo(HaveOccurred())

			invoker.mu.Lock()
			system := invoker.messages["groq/a"][0]
			invoker.mu.Unlock()
			Expect(system.Role).To(Equal(llm.RoleSystem))
			Expect(system.Content).To(ContainSubstring("empathy"))
		})
	})

	Describe("Single", func() {
		It("forwards history in order and sanitizes the answer", func() {
			outcomes["groq/b"] = llm.Success("<think>hmm</think>per the model, sure thing")
			history := []llm.Message{
				{Role: llm.RoleUser, Content: "first"},
				{Role: llm.RoleAssistant, Content: "second"},
				{Role: llm.RoleUser, Content: "third"},
			}

			text, err := pipeline.Single(ctx, brain.SingleRequest{Backend: "groq/b", Prompt: "fourth", History: history})
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Sure thing"))

			invoker.mu.Lock()
			sent := invoker.messages["groq/b"]
			invoker.mu.Unlock()
			Expect(sent).To(HaveLen(5))
			Expect(sent[0].Role).To(Equal(llm.RoleSystem))
			Expect([]string{sent[1].Content, sent[2].Content, sent[3].Content, sent[4].Content}).
				To(Equal([]string{"first", "second", "third", "fourth"}))
		})

		It("returns a BackendError on failure", func() {
			_, err := pipeline.Single(ctx, brain.SingleRequest{Backend: "groq/c", Prompt: "hi"})

			var backendErr *brain.BackendError
			Expect(errors.As(err, &backendErr)).To(BeTrue())
			Expect(backendErr.Backend).To(Equal("groq/c"))
			Expect(backendErr.Kind).To(Equal(llm.FailureTimeout))
			Expect(backendErr.Reason).To(Equal("Request timeout"))
		})
	})

	Describe("Complete", func() {
		It("falls through the chain", func() {
			outcomes["synth/primary"] = llm.StatusFailure(429)

			text, ok := pipeline.Complete(ctx, testProfile.Synthesis, llm.UserTurn("summarize"), 0)
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("Secondary synthesis."))
		})

		It("reports exhaustion", func() {
			outcomes["synth/primary"] = llm.StatusFailure(429)
			outcomes["synth/secondary"] = llm.StatusFailure(500)

			_, ok := pipeline.Complete(ctx, testProfile.Synthesis, llm.UserTurn("summarize"), 0)
			Expect(ok).To(BeFalse())
		})
	})
})
