package service_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/service"
)

var summaryProfile = brain.Profile{
	Name:      service.ProfileSummary,
	Backends:  []string{"summary/a"},
	Synthesis: brain.Chain{Primary: "summary/a", Secondary: "summary/b"},
	Humanize:  brain.Chain{Primary: "summary/a"},
	MaxWords:  120,
}

func dayOfChats() []model.ChatSession {
	return []model.ChatSession{
		{ID: 1, Title: "Sky", Turns: []model.ChatTurnRecord{
			{Role: model.RoleUser, Content: "Why is the sky blue?"},
			{Role: model.RoleAssistant, Content: "Scattering."},
		}},
		{ID: 2, Title: "Empty"},
		{ID: 3, Title: "Tea", Turns: []model.ChatTurnRecord{
			{Role: model.RoleUser, Content: "Best tea for sleep?"},
		}},
	}
}

var _ = Describe("SummaryService", func() {
	var (
		ctx       context.Context
		invoker   *mockInvoker
		chats     *mockChatSessionStore
		summaries *mockSummaryStore
		askedDay  time.Time
		svc       service.SummaryService
	)

	build := func() {
		pipeline := brain.NewPipeline(summaryProfile, invoker, brain.MustSanitizer())
		svc = service.NewSummaryService(pipeline, chats, summaries)
	}

	BeforeEach(func() {
		ctx = context.Background()
		invoker = newMockInvoker(map[string]llm.Outcome{
			"summary/a": llm.Success("you asked why the sky is blue and which tea helps you sleep"),
		})
		summaries = &mockSummaryStore{}
		chats = &mockChatSessionStore{
			listByDayFn: func(_ context.Context, _ int64, day time.Time) ([]model.ChatSession, error) {
				askedDay = day
				return dayOfChats(), nil
			},
		}
		build()
	})

	It("summarizes the day's sessions that have turns", func() {
		summary, err := svc.Summarize(ctx, 7, "2026-03-01")

		Expect(err).NotTo(HaveOccurred())
		Expect(askedDay).To(Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
		Expect(summary.Text).To(Equal("You asked why the sky is blue and which tea helps you sleep"))
		Expect(summary.SessionIDs).To(Equal([]int64{1, 3}))
		Expect(summaries.saved).To(ConsistOf(summary))

		prompt := invoker.sent("summary/a")
		Expect(prompt[len(prompt)-1].Content).To(ContainSubstring("User: Why is the sky blue?\nCompanion: Scattering."))
		Expect(strings.Contains(prompt[len(prompt)-1].Content, "## Empty")).To(BeFalse())
	})

	It("falls back to the secondary backend", func() {
		invoker = newMockInvoker(map[string]llm.Outcome{
			"summary/a": llm.StatusFailure(503),
			"summary/b": llm.Success("A calm day."),
		})
		build()

		summary, err := svc.Summarize(ctx, 7, "2026-03-01")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Text).To(Equal("A calm day."))
	})

	It("reports an unavailable summary when the chain fails", func() {
		invoker = newMockInvoker(nil)
		build()

		_, err := svc.Summarize(ctx, 7, "2026-03-01")
		Expect(err).To(MatchError(service.ErrSummaryUnavailable))
		Expect(summaries.saved).To(BeEmpty())
	})

	It("refuses days without conversations", func() {
		chats.listByDayFn = func(context.Context, int64, time.Time) ([]model.ChatSession, error) {
			return []model.ChatSession{{ID: 2}}, nil
		}
		_, err := svc.Summarize(ctx, 7, "2026-03-01")
		Expect(err).To(MatchError(service.ErrNoConversations))
	})

	It("rejects malformed dates", func() {
		_, err := svc.Summarize(ctx, 7, "yesterday")
		Expect(errors.Is(err, service.ErrInvalidDate)).To(BeTrue())

		_, err = svc.Get(ctx, 7, "2026-13-01")
		Expect(errors.Is(err, service.ErrInvalidDate)).To(BeTrue())
	})
})
