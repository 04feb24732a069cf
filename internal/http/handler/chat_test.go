package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/http/handler"
	"lumen.app/companion/internal/service"
	"lumen.app/companion/internal/store"
)

var _ = Describe("ChatHandler", func() {
	var (
		router *gin.Engine
		svc    *mockChatService
	)

	BeforeEach(func() {
		router = newRouter()
		svc = &mockChatService{}
		h := handler.NewChatHandler(svc)
		router.POST("/chat", h.Chat)
	})

	It("returns the synthesized and humanized answers in discussion mode", func() {
		svc.chatFn = func(_ context.Context, req service.ChatRequest) (*service.ChatResult, error) {
			return &service.ChatResult{
				Mode:              service.ModeDiscussion,
				SessionID:         req.SessionID,
				Backend:           service.BackendAll,
				Style:             brain.StyleEmotional,
				Response:          "Tea can help you relax",
				HumanizedResponse: "A warm cup might help you unwind",
				InitialResponses:  map[string]string{"groq/a": "Chamomile", "groq/b": "Rooibos"},
				Order:             []string{"groq/a", "groq/b"},
				Duration:          1500 * time.Millisecond,
			}, nil
		}

		w := doJSON(router, http.MethodPost, "/chat", map[string]any{
			"prompt":     "which tea helps me sleep",
			"session_id": "7",
			"surface":    "room",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decode(w)
		Expect(resp["success"]).To(BeTrue())
		Expect(resp["response"]).To(Equal("Tea can help you relax"))
		Expect(resp["humanized_response"]).To(Equal("A warm cup might help you unwind"))
		Expect(resp["initial_responses"]).To(HaveKeyWithValue("groq/b", "Rooibos"))
		Expect(resp["style"]).To(Equal("emotional"))
		Expect(resp["session_id"]).To(Equal("7"))
		Expect(resp["duration"]).To(BeEquivalentTo(1500))

		Expect(svc.lastChatReq.UserID).To(Equal(testUser.ID))
		Expect(svc.lastChatReq.SessionID).To(Equal(int64(7)))
		Expect(svc.lastChatReq.Surface).To(Equal(service.SurfaceRoom))
	})

	It("returns 502 with the failure shape when every backend fails", func() {
		svc.chatFn = func(context.Context, service.ChatRequest) (*service.ChatResult, error) {
			return nil, fmt.Errorf("discussing: %w", brain.ErrAllBackendsFailed)
		}

		w := doJSON(router, http.MethodPost, "/chat", map[string]any{"prompt": "hello"})

		Expect(w.Code).To(Equal(http.StatusBadGateway))
		resp := decode(w)
		Expect(resp["success"]).To(BeFalse())
		Expect(resp["error"]).To(Equal("all backends failed"))
		Expect(resp).To(HaveKey("duration"))
		Expect(resp).NotTo(HaveKey("response"))
	})

	It("reports the elapsed milliseconds on failure", func() {
		svc.chatFn = func(context.Context, service.ChatRequest) (*service.ChatResult, error) {
			time.Sleep(20 * time.Millisecond)
			return nil, brain.ErrAllBackendsFailed
		}

		w := doJSON(router, http.MethodPost, "/chat", map[string]any{"prompt": "hello"})

		Expect(w.Code).To(Equal(http.StatusBadGateway))
		Expect(decode(w)["duration"]).To(And(
			BeNumerically(">=", 20),
			BeNumerically("<", 5000),
		))
	})

	It("returns 502 naming the backend when a single backend fails", func() {
		svc.chatFn = func(context.Context, service.ChatRequest) (*service.ChatResult, error) {
			return nil, &brain.BackendError{Backend: "groq/a", Reason: "rate limited"}
		}

		w := doJSON(router, http.MethodPost, "/chat", map[string]any{"prompt": "hello", "backend": "groq/a"})

		Expect(w.Code).To(Equal(http.StatusBadGateway))
		Expect(decode(w)["error"]).To(Equal("backend groq/a: rate limited"))
	})

	DescribeTable("rejects bad requests with 400",
		func(body any, serviceErr error) {
			svc.chatFn = func(context.Context, service.ChatRequest) (*service.ChatResult, error) {
				return nil, serviceErr
			}

			w := doJSON(router, http.MethodPost, "/chat", body)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["success"]).To(BeFalse())
		},
		Entry("malformed json", `{`, nil),
		Entry("missing prompt", map[string]any{"backend": "all"}, nil),
		Entry("unknown surface", map[string]any{"prompt": "hi", "surface": "kitchen"}, nil),
		Entry("blank prompt", map[string]any{"prompt": "   "}, brain.ErrEmptyPrompt),
		Entry("unknown backend", map[string]any{"prompt": "hi", "backend": "nope"}, fmt.Errorf("%w: nope", service.ErrUnknownBackend)),
		Entry("invalid style", map[string]any{"prompt": "hi", "style": "sarcastic"}, service.ErrInvalidStyle),
	)

	It("returns 404 when the conversation does not exist", func() {
		svc.chatFn = func(context.Context, service.ChatRequest) (*service.ChatResult, error) {
			return nil, fmt.Errorf("getting chat session: %w", store.ErrNotFound)
		}

		w := doJSON(router, http.MethodPost, "/chat", map[string]any{"prompt": "hi", "session_id": "99"})

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("returns 500 without leaking internal errors", func() {
		svc.chatFn = func(context.Context, service.ChatRequest) (*service.ChatResult, error) {
			return nil, errors.New("connection reset by peer")
		}

		w := doJSON(router, http.MethodPost, "/chat", map[string]any{"prompt": "hi"})

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decode(w)["error"]).To(Equal("internal server error"))
	})
})
