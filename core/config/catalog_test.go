package config_test

import (
	"os"
	"path/filepath"
	"time"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/core/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog", func() {
	It("loads the embedded default catalog", func() {
		c, err := config.LoadCatalog("")
		Expect(err).NotTo(HaveOccurred())

		p, ok := c.Profile("discussion")
		Expect(ok).To(BeTrue())
		Expect(p.Backends).To(ContainElement("openai/gpt-oss-20b"))
		Expect(p.MaxWords).To(Equal(100))
		Expect(p.Synthesis.Primary).NotTo(BeEmpty())
	})

	It("parses durations and fills defaults", func() {
		c, err := config.ParseCatalog([]byte(`
providers:
  groq: {kind: openai, base_url: https://example.test/v1, api_key_env: TEST_GROQ_KEY}
backends:
  - id: fast
    provider: groq
    timeout: 10s
  - id: slow
    provider: groq
    model: slow-model-v2
profiles:
  chat:
    backends: [fast, slow]
    synthesis: {primary: fast, secondary: slow}
    humanize: {primary: fast}
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Backends[0].Timeout).To(Equal(10 * time.Second))
		Expect(c.Backends[0].Model).To(Equal("fast"))
		Expect(c.Backends[1].Timeout).To(Equal(llm.DefaultTimeout))
		Expect(c.Profiles["chat"].MaxWords).To(Equal(100))
	})

	It("resolves API keys from the provider env var", func() {
		GinkgoT().Setenv("TEST_GROQ_KEY", "gsk-123")
		c, err := config.ParseCatalog([]byte(`
providers:
  groq: {kind: openai, base_url: https://example.test/v1, api_key_env: TEST_GROQ_KEY}
backends:
  - {id: fast, provider: groq}
profiles:
  chat: {backends: [fast], synthesis: {primary: fast}, humanize: {primary: fast}}
`))
		Expect(err).NotTo(HaveOccurred())

		cfgs := c.BackendConfigs()
		Expect(cfgs).To(HaveLen(1))
		Expect(cfgs[0].APIKey).To(Equal("gsk-123"))
		Expect(cfgs[0].Provider).To(Equal(llm.ProviderOpenAI))
		Expect(cfgs[0].BaseURL).To(Equal("https://example.test/v1"))
	})

	DescribeTable("rejects inconsistent catalogs",
		func(doc, msg string) {
			_, err := config.ParseCatalog([]byte(doc))
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("unknown provider", `
providers: {}
backends: [{id: a, provider: nowhere}]
`, "unknown provider"),
		Entry("unknown backend in profile", `
providers: {p: {kind: openai}}
backends: [{id: a, provider: p}]
profiles:
  chat: {backends: [a, b], synthesis: {primary: a}, humanize: {primary: a}}
`, `unknown backend "b"`),
		Entry("missing primary", `
providers: {p: {kind: openai}}
backends: [{id: a, provider: p}]
profiles:
  chat: {backends: [a], humanize: {primary: a}}
`, "needs a primary"),
		Entry("duplicate backend", `
providers: {p: {kind: openai}}
backends: [{id: a, provider: p}, {id: a, provider: p}]
`, "declared twice"),
	)

	It("reads a catalog file from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "backends.yaml")
		Expect(os.WriteFile(path, []byte(`
providers: {p: {kind: anthropic, api_key_env: X}}
backends: [{id: claude, provider: p}]
profiles:
  chat: {backends: [claude], synthesis: {primary: claude}, humanize: {primary: claude}, max_words: 60}
`), 0o600)).To(Succeed())

		c, err := config.LoadCatalog(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Profiles["chat"].MaxWords).To(Equal(60))
	})
})
