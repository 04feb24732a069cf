package service_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/queue"
	"lumen.app/companion/internal/service"
)

func journalReturning(entry service.JournalEntry) *mockJournal {
	return &mockJournal{
		chatFn: func(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
			Expect(req.SchemaName).To(Equal("journal_entry"))
			Expect(req.Schema).NotTo(BeNil())
			*result.(*service.JournalEntry) = entry
			return &llm.Response{PromptTokens: 10, CompletionTokens: 20}, nil
		},
	}
}

var _ = Describe("MemoryService", func() {
	var (
		ctx      context.Context
		producer *mockProducer
		chats    *mockChatSessionStore
		memories *mockMemoryStore
		journal  *mockJournal
		images   *mockImages
		uploader *mockUploader
		svc      service.MemoryService
		job      queue.MemoryJob
	)

	build := func() {
		svc = service.NewMemoryService(service.MemoryDeps{
			Producer: producer,
			Chats:    chats,
			Memories: memories,
			Journal:  journal,
			Images:   images,
			Uploader: uploader,
			Fetcher:  mockFetcher{},
		}, service.MemoryConfig{Folder: "memories", ImageSize: "1024x1024", ImageQuality: "standard"})
	}

	BeforeEach(func() {
		ctx = context.Background()
		producer = &mockProducer{}
		chats = &mockChatSessionStore{
			listByDayFn: func(context.Context, int64, time.Time) ([]model.ChatSession, error) {
				return dayOfChats(), nil
			},
		}
		memories = &mockMemoryStore{}
		journal = journalReturning(service.JournalEntry{
			Title: "a blue sky day",
			Entry: "you wondered about the sky: then about tea.",
			Mood:  " Curious ",
			Panels: []service.JournalPanel{
				{Caption: "looking up", ImagePrompt: "a girl looking at a blue sky"},
				{Caption: "a warm cup", ImagePrompt: "a cup of chamomile tea at night"},
			},
		})
		images = &mockImages{
			generateFn: func(_ context.Context, prompt string) (string, error) {
				return "https://images.example.com/" + strings.ReplaceAll(prompt, " ", "-"), nil
			},
		}
		uploader = &mockUploader{}
		job = queue.MemoryJob{UserID: 7, Date: "2026-03-01", Attempt: 1}
		build()
	})

	Describe("Generate", func() {
		It("writes, illustrates, uploads and saves the memory", func() {
			Expect(svc.Generate(ctx, job)).To(Succeed())

			Expect(memories.saved).To(HaveLen(1))
			m := memories.saved[0]
			Expect(m.UserID).To(Equal(int64(7)))
			Expect(m.Date).To(Equal("2026-03-01"))
			Expect(m.Title).To(Equal("A blue sky day"))
			Expect(m.Entry).To(Equal("You wondered about the sky then about tea."))
			Expect(m.Mood).To(Equal("curious"))
			Expect(m.Panels).To(HaveLen(2))
			Expect(m.Panels[0].Index).To(Equal(0))
			Expect(m.Panels[0].ImageURL).To(Equal("https://cdn.example.com/memories/7-2026-03-01-0-a-blue-sky-day.png"))
			Expect(m.Panels[1].ImageURL).To(Equal("https://cdn.example.com/memories/7-2026-03-01-1-a-blue-sky-day.png"))
			Expect(uploader.ids).To(ConsistOf("7-2026-03-01-0-a-blue-sky-day", "7-2026-03-01-1-a-blue-sky-day"))
		})

		It("saves panels without images when generation fails", func() {
			images.generateFn = func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "tea") {
					return "", errors.New("content policy")
				}
				return "https://images.example.com/sky", nil
			}

			Expect(svc.Generate(ctx, job)).To(Succeed())

			m := memories.saved[0]
			Expect(m.Panels[0].ImageURL).NotTo(BeEmpty())
			Expect(m.Panels[1].ImageURL).To(BeEmpty())
		})

		It("keeps at most four panels", func() {
			var panels []service.JournalPanel
			for i := 0; i < 6; i++ {
				panels = append(panels, service.JournalPanel{Caption: "c", ImagePrompt: "p"})
			}
			journal = journalReturning(service.JournalEntry{Title: "t", Entry: "e", Mood: "calm", Panels: panels})
			build()

			Expect(svc.Generate(ctx, job)).To(Succeed())
			Expect(memories.saved[0].Panels).To(HaveLen(4))
		})

		It("fails permanently when the day has no conversations", func() {
			chats.listByDayFn = func(context.Context, int64, time.Time) ([]model.ChatSession, error) {
				return nil, nil
			}

			err := svc.Generate(ctx, job)
			Expect(err).To(MatchError(service.ErrNoConversations))
			Expect(service.IsRetryable(ctx, err)).To(BeFalse())
			Expect(memories.saved).To(BeEmpty())
		})

		It("returns journal failures for the worker to retry", func() {
			journal = &mockJournal{
				chatFn: func(context.Context, llm.Request, any) (*llm.Response, error) {
					return nil, errors.New("connection refused")
				},
			}
			build()

			err := svc.Generate(ctx, job)
			Expect(err).To(MatchError(ContainSubstring("writing journal entry")))
			Expect(service.IsRetryable(ctx, err)).To(BeTrue())
		})
	})

	Describe("Enqueue", func() {
		It("queues a first attempt for the day", func() {
			Expect(svc.Enqueue(ctx, 7, "2026-03-01")).To(Succeed())
			Expect(producer.jobs).To(Equal([]queue.MemoryJob{{UserID: 7, Date: "2026-03-01", Attempt: 1}}))
		})

		It("rejects malformed dates", func() {
			err := svc.Enqueue(ctx, 7, "03/01/2026")
			Expect(errors.Is(err, service.ErrInvalidDate)).To(BeTrue())
			Expect(producer.jobs).To(BeEmpty())
		})
	})

	Describe("Get and List", func() {
		It("reads saved memories back", func() {
			Expect(svc.Generate(ctx, job)).To(Succeed())

			m, err := svc.Get(ctx, 7, "2026-03-01")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ID).To(Equal(int64(1)))

			list, err := svc.List(ctx, 7, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
		})
	})
})

var _ = DescribeTable("IsRetryable",
	func(err error, want bool) {
		Expect(service.IsRetryable(context.Background(), err)).To(Equal(want))
	},
	Entry("no conversations", service.ErrNoConversations, false),
	Entry("wrapped invalid date", errors.Join(errors.New("job"), service.ErrInvalidDate), false),
	Entry("rate limited", &openai.Error{StatusCode: 429}, true),
	Entry("server error", &openai.Error{StatusCode: 502}, true),
	Entry("bad request", &openai.Error{StatusCode: 400}, false),
	Entry("cancelled", context.Canceled, false),
	Entry("network", errors.New("dial tcp: connection refused"), true),
)
