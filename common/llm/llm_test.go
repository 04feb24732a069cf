package llm_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"lumen.app/companion/common/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`

func newTestBackend(provider, baseURL string, timeout time.Duration) llm.Backend {
	b, err := llm.NewBackend(llm.Config{
		ID:       "test/backend",
		Provider: provider,
		APIKey:   "sk-test",
		BaseURL:  baseURL,
		Model:    "test-model",
		Timeout:  timeout,
	})
	Expect(err).NotTo(HaveOccurred())
	return b
}

var _ = Describe("Outcome", func() {
	DescribeTable("maps HTTP status to a failure reason",
		func(status int, kind llm.FailureKind, reason string) {
			o := llm.StatusFailure(status)
			Expect(o.OK()).To(BeFalse())
			Expect(o.Failure).To(Equal(kind))
			Expect(o.Reason).To(Equal(reason))
		},
		Entry("408 is a timeout", http.StatusRequestTimeout, llm.FailureTimeout, "Request timeout"),
		Entry("504 is a timeout", http.StatusGatewayTimeout, llm.FailureTimeout, "Request timeout"),
		Entry("429 is rate limiting", http.StatusTooManyRequests, llm.FailureRateLimited, "Rate limit exceeded"),
		Entry("500 is a generic API error", http.StatusInternalServerError, llm.FailureAPI, "API error (status 500)"),
		Entry("401 is a generic API error", http.StatusUnauthorized, llm.FailureAPI, "API error (status 401)"),
	)

	It("keeps network failures distinct from HTTP failures", func() {
		Expect(llm.NetworkFailure().Reason).NotTo(Equal(llm.StatusFailure(504).Reason))
		Expect(llm.NetworkFailure().Failure).To(Equal(llm.FailureNetwork))
	})

	It("labels failures as unavailable", func() {
		Expect(llm.Failed(llm.FailureTimeout, "Request timeout").Label()).To(Equal("Error: Request timeout (unavailable)"))
		Expect(llm.Success("hi").Label()).To(Equal("hi"))
	})

	It("treats an empty completion as a success with placeholder text", func() {
		o := llm.Success("")
		Expect(o.OK()).To(BeTrue())
		Expect(o.Text).To(Equal(llm.NoResponseText))
	})
})

var _ = Describe("NewBackend", func() {
	It("requires an API key", func() {
		_, err := llm.NewBackend(llm.Config{ID: "x", Provider: llm.ProviderOpenAI})
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewBackend(llm.Config{ID: "x", Provider: "carrier-pigeon", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})
})

var _ = Describe("OpenAI backend", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		handler = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns the completion text on success", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, completionBody, "The sky is blue.")
		}

		o := newTestBackend(llm.ProviderOpenAI, server.URL, time.Second).Invoke(context.Background(), llm.Invocation{
			Messages: llm.UserTurn("why is the sky blue"),
		})
		Expect(o.OK()).To(BeTrue())
		Expect(o.Text).To(Equal("The sky is blue."))
	})

	It("returns placeholder text when content is empty", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, completionBody, "")
		}

		o := newTestBackend(llm.ProviderOpenAI, server.URL, time.Second).Invoke(context.Background(), llm.Invocation{
			Messages: llm.UserTurn("hello"),
		})
		Expect(o.OK()).To(BeTrue())
		Expect(o.Text).To(Equal(llm.NoResponseText))
	})

	DescribeTable("maps error statuses without retrying",
		func(status int, kind llm.FailureKind) {
			calls := 0
			handler = func(w http.ResponseWriter, _ *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test_error","code":"test"}}`))
			}

			o := newTestBackend(llm.ProviderOpenAI, server.URL, time.Second).Invoke(context.Background(), llm.Invocation{
				Messages: llm.UserTurn("hello"),
			})
			Expect(o.OK()).To(BeFalse())
			Expect(o.Failure).To(Equal(kind))
			Expect(calls).To(Equal(1))
		},
		Entry("rate limited", http.StatusTooManyRequests, llm.FailureRateLimited),
		Entry("gateway timeout", http.StatusGatewayTimeout, llm.FailureTimeout),
		Entry("server error", http.StatusInternalServerError, llm.FailureAPI),
	)

	It("turns its own timeout into a network failure", func() {
		handler = func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}

		o := newTestBackend(llm.ProviderOpenAI, server.URL, 50*time.Millisecond).Invoke(context.Background(), llm.Invocation{
			Messages: llm.UserTurn("hello"),
		})
		Expect(o.OK()).To(BeFalse())
		Expect(o.Failure).To(Equal(llm.FailureNetwork))
		Expect(o.Reason).To(Equal("Network error or timeout"))
	})

	It("turns connection errors into a network failure", func() {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		o := newTestBackend(llm.ProviderOpenAI, url, time.Second).Invoke(context.Background(), llm.Invocation{
			Messages: llm.UserTurn("hello"),
		})
		Expect(o.OK()).To(BeFalse())
		Expect(o.Failure).To(Equal(llm.FailureNetwork))
	})
})

var _ = Describe("Anthropic backend", func() {
	It("concatenates text blocks", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
  "content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
  "stop_reason": "end_turn", "stop_sequence": null,
  "usage": {"input_tokens": 4, "output_tokens": 2}
}`))
		}))
		defer server.Close()

		o := newTestBackend(llm.ProviderAnthropic, server.URL, time.Second).Invoke(context.Background(), llm.Invocation{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "be kind"},
				{Role: llm.RoleUser, Content: "hi"},
			},
		})
		Expect(o.OK()).To(BeTrue())
		Expect(o.Text).To(Equal("Hello there"))
	})

	It("maps 429 to rate limiting", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
		}))
		defer server.Close()

		o := newTestBackend(llm.ProviderAnthropic, server.URL, time.Second).Invoke(context.Background(), llm.Invocation{
			Messages: llm.UserTurn("hi"),
		})
		Expect(o.Failure).To(Equal(llm.FailureRateLimited))
	})
})

var _ = Describe("Registry", func() {
	It("fails unknown backends like any other backend failure", func() {
		r := llm.NewRegistry()
		o := r.Invoke(context.Background(), "missing/model", llm.Invocation{})
		Expect(o.OK()).To(BeFalse())
		Expect(o.Reason).To(Equal("unknown backend"))
	})

	It("skips configs without API keys", func() {
		r, err := llm.NewRegistryFromConfigs(context.Background(), []llm.Config{
			{ID: "a/one", Provider: llm.ProviderOpenAI, APIKey: "k"},
			{ID: "b/two", Provider: llm.ProviderOpenAI},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.IDs()).To(Equal([]string{"a/one"}))
	})
})
