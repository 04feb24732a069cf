package service

import (
	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/upload"
	"lumen.app/companion/internal/queue"
	"lumen.app/companion/internal/store"
)

// Deps collects what the services need. Images, Uploader and Fetcher may be
// nil; memories are then saved without panel images.
type Deps struct {
	Stores    *store.Stores
	TxRunner  TxRunner
	Identity  IdentityProvider
	Pipelines Pipelines
	Backends  []string
	Producer  queue.Producer
	Journal   llm.Client
	Images    llm.ImageGenerator
	Uploader  upload.Uploader
	Fetcher   upload.Fetcher
	Memory    MemoryConfig
}

type Services struct {
	deps Deps
}

func NewServices(deps Deps) *Services {
	return &Services{deps: deps}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(
		s.deps.Identity,
		s.deps.TxRunner,
		s.deps.Stores.Users(),
		s.deps.Stores.Sessions(),
	)
}

func (s *Services) Chat() ChatService {
	return NewChatService(
		s.deps.Pipelines.Surfaces(),
		s.deps.Backends,
		s.deps.Stores.ChatSessions(),
		s.deps.Stores.Styles(),
	)
}

func (s *Services) Summaries() SummaryService {
	return NewSummaryService(
		s.deps.Pipelines[ProfileSummary],
		s.deps.Stores.ChatSessions(),
		s.deps.Stores.Summaries(),
	)
}

func (s *Services) Memories() MemoryService {
	sanitizer := s.deps.Pipelines[ProfileSummary].Sanitizer()
	return NewMemoryService(MemoryDeps{
		Producer:  s.deps.Producer,
		Chats:     s.deps.Stores.ChatSessions(),
		Memories:  s.deps.Stores.Memories(),
		Journal:   s.deps.Journal,
		Images:    s.deps.Images,
		Uploader:  s.deps.Uploader,
		Fetcher:   s.deps.Fetcher,
		Sanitizer: sanitizer,
	}, s.deps.Memory)
}

// Backends lists the backend ids accepted in single-backend mode.
func (s *Services) Backends() []string {
	return s.deps.Backends
}

func (s *Services) Pipelines() Pipelines {
	return s.deps.Pipelines
}
