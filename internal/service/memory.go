package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"lumen.app/companion/common"
	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
	"lumen.app/companion/common/otel"
	"lumen.app/companion/common/upload"
	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/queue"
	"lumen.app/companion/internal/store"
)

const (
	maxPanels         = 4
	panelConcurrency  = 2
	journalMaxTokens  = 1500
	journalTimeout    = 90 * time.Second
	panelImageTimeout = 2 * time.Minute
)

const journalSystemPrompt = "You turn a day of conversations into a short manga journal entry written to the user. " +
	"Keep it warm and specific to what they talked about. Never mention AI, assistants or model names. " +
	"Describe up to four panels; each image prompt depicts a calm illustrated scene without any text or lettering."

// JournalEntry is the structured output requested from the journal model.
type JournalEntry struct {
	Title  string         `json:"title" jsonschema:"required,description=Short title for the day (max 8 words)"`
	Entry  string         `json:"entry" jsonschema:"required,description=Journal paragraph addressed to the user (60-120 words)"`
	Mood   string         `json:"mood" jsonschema:"required,description=One word describing the overall mood of the day"`
	Panels []JournalPanel `json:"panels" jsonschema:"required,description=Between one and four illustrated panels in story order"`
}

type JournalPanel struct {
	Caption     string `json:"caption" jsonschema:"required,description=One sentence caption shown under the panel"`
	ImagePrompt string `json:"image_prompt" jsonschema:"required,description=Scene description for the illustrator in manga style"`
}

type MemoryConfig struct {
	Folder       string // upload folder for panel images
	ImageSize    string
	ImageQuality string
	MaxTokens    int
}

type MemoryService interface {
	Enqueue(ctx context.Context, userID int64, date string) error
	Get(ctx context.Context, userID int64, date string) (*model.Memory, error)
	List(ctx context.Context, userID int64, limit int) ([]model.Memory, error)
	// Generate builds and saves the memory for one job. It runs in the worker.
	Generate(ctx context.Context, job queue.MemoryJob) error
}

type memoryService struct {
	producer  queue.Producer
	chats     store.ChatSessionStore
	memories  store.MemoryStore
	journal   llm.Client
	images    llm.ImageGenerator // nil skips panel images
	uploader  upload.Uploader    // nil keeps the generator's URLs
	fetcher   upload.Fetcher
	sanitizer *brain.Sanitizer
	cfg       MemoryConfig
	now       func() time.Time
}

type MemoryDeps struct {
	Producer  queue.Producer
	Chats     store.ChatSessionStore
	Memories  store.MemoryStore
	Journal   llm.Client
	Images    llm.ImageGenerator
	Uploader  upload.Uploader
	Fetcher   upload.Fetcher
	Sanitizer *brain.Sanitizer
}

func NewMemoryService(deps MemoryDeps, cfg MemoryConfig) MemoryService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = journalMaxTokens
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = brain.MustSanitizer()
	}
	return &memoryService{
		producer:  deps.Producer,
		chats:     deps.Chats,
		memories:  deps.Memories,
		journal:   deps.Journal,
		images:    deps.Images,
		uploader:  deps.Uploader,
		fetcher:   deps.Fetcher,
		sanitizer: deps.Sanitizer,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *memoryService) Enqueue(ctx context.Context, userID int64, date string) error {
	if _, err := parseDate(date); err != nil {
		return err
	}
	if s.producer == nil {
		return fmt.Errorf("memory queue is not configured")
	}
	job := queue.MemoryJob{
		UserID:      userID,
		Date:        date,
		TraceParent: otel.TraceParent(ctx),
		Attempt:     1,
	}
	if err := s.producer.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueueing %s: %w", job, err)
	}
	return nil
}

func (s *memoryService) Get(ctx context.Context, userID int64, date string) (*model.Memory, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	memory, err := s.memories.Get(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("getting memory: %w", err)
	}
	return memory, nil
}

func (s *memoryService) List(ctx context.Context, userID int64, limit int) ([]model.Memory, error) {
	memories, err := s.memories.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	return memories, nil
}

func (s *memoryService) Generate(ctx context.Context, job queue.MemoryJob) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(job.UserID),
		Component: "companion.service.memory",
	})

	day, err := parseDate(job.Date)
	if err != nil {
		return err
	}

	sessions, err := s.chats.ListByDay(ctx, job.UserID, day)
	if err != nil {
		return fmt.Errorf("listing chat sessions: %w", err)
	}
	transcript, _ := buildTranscript(sessions)
	if transcript == "" {
		return ErrNoConversations
	}

	entry, err := s.writeEntry(ctx, job.Date, transcript)
	if err != nil {
		return err
	}

	memory := &model.Memory{
		Date:      job.Date,
		UserID:    job.UserID,
		Title:     s.sanitizer.Sanitize(entry.Title, 0),
		Entry:     s.sanitizer.Sanitize(entry.Entry, 0),
		Mood:      strings.ToLower(strings.TrimSpace(entry.Mood)),
		CreatedAt: s.now().UTC(),
	}
	for i, p := range entry.Panels {
		if i == maxPanels {
			break
		}
		memory.Panels = append(memory.Panels, model.Panel{
			Index:       i,
			Caption:     s.sanitizer.Sanitize(p.Caption, 0),
			ImagePrompt: strings.TrimSpace(p.ImagePrompt),
		})
	}

	s.illustrate(ctx, memory)

	if err := s.memories.Save(ctx, memory); err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}

	slog.InfoContext(ctx, "memory saved",
		"date", job.Date,
		"memory_id", memory.ID,
		"panels", len(memory.Panels),
		"illustrated", countIllustrated(memory.Panels))
	return nil
}

func (s *memoryService) writeEntry(ctx context.Context, date, transcript string) (*JournalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	var entry JournalEntry
	resp, err := s.journal.Chat(ctx, llm.Request{
		SystemPrompt: journalSystemPrompt,
		UserPrompt:   "Conversations from " + date + ":\n\n" + transcript,
		SchemaName:   "journal_entry",
		Schema:       llm.GenerateSchema[JournalEntry](),
		MaxTokens:    s.cfg.MaxTokens,
	}, &entry)
	if err != nil {
		return nil, fmt.Errorf("writing journal entry: %w", err)
	}
	if strings.TrimSpace(entry.Entry) == "" {
		return nil, fmt.Errorf("writing journal entry: empty entry")
	}

	slog.DebugContext(ctx, "journal entry written",
		"model", s.journal.Model(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)
	return &entry, nil
}

// illustrate draws the panels concurrently. A panel whose image fails keeps
// an empty ImageURL; the memory is saved either way.
func (s *memoryService) illustrate(ctx context.Context, memory *model.Memory) {
	if s.images == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(panelConcurrency)
	for i := range memory.Panels {
		panel := memory.Panels[i]
		if panel.ImagePrompt == "" {
			continue
		}
		g.Go(func() error {
			url, err := s.drawPanel(gctx, memory, panel)
			if err != nil {
				slog.WarnContext(gctx, "panel image failed",
					"panel", panel.Index,
					"error", err)
				return nil
			}
			memory.Panels[i].ImageURL = url
			return nil
		})
	}
	_ = g.Wait()
}

func (s *memoryService) drawPanel(ctx context.Context, memory *model.Memory, panel model.Panel) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, panelImageTimeout)
	defer cancel()

	url, err := s.images.Generate(ctx, panel.ImagePrompt, s.cfg.ImageSize, s.cfg.ImageQuality)
	if err != nil {
		return "", err
	}
	if s.uploader == nil || s.fetcher == nil {
		return url, nil
	}

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	slug, err := common.Slugify(memory.Title, "memory")
	if err != nil {
		return "", err
	}
	publicID := fmt.Sprintf("%d-%s-%d-%s", memory.UserID, memory.Date, panel.Index, slug)
	return s.uploader.Upload(ctx, data, s.cfg.Folder, publicID)
}

func countIllustrated(panels []model.Panel) int {
	n := 0
	for _, p := range panels {
		if p.ImageURL != "" {
			n++
		}
	}
	return n
}

// IsRetryable decides whether a failed memory job goes back on the queue.
// Days without conversations and malformed dates never succeed on retry.
func IsRetryable(ctx context.Context, err error) bool {
	if errors.Is(err, ErrNoConversations) || errors.Is(err, ErrInvalidDate) {
		return false
	}
	return llm.IsRetryable(ctx, err)
}
