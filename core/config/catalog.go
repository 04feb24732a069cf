package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lumen.app/companion/common/llm"
)

//go:embed catalog.default.yaml
var defaultCatalog []byte

const defaultMaxWords = 100

// Catalog declares which LLM backends exist and how each pipeline profile
// uses them. It is read from BACKENDS_FILE, or the embedded default.
type Catalog struct {
	Providers map[string]ProviderSpec `yaml:"providers"`
	Backends  []BackendSpec           `yaml:"backends"`
	Profiles  map[string]ProfileSpec  `yaml:"profiles"`
	Sanitizer SanitizerSpec           `yaml:"sanitizer"`
}

type ProviderSpec struct {
	Kind      string `yaml:"kind"` // "openai" or "anthropic"
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type BackendSpec struct {
	ID          string        `yaml:"id"`
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
}

// ChainSpec is an ordered (primary, secondary) backend pair.
type ChainSpec struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

type ProfileSpec struct {
	Backends  []string  `yaml:"backends"`
	Synthesis ChainSpec `yaml:"synthesis"`
	Humanize  ChainSpec `yaml:"humanize"`
	MaxWords  int       `yaml:"max_words"`
}

type SanitizerSpec struct {
	ReasoningTags []string `yaml:"reasoning_tags"`
	Denylist      []string `yaml:"denylist"`
}

// LoadCatalog reads the catalog at path; an empty path selects the embedded
// default catalog.
func LoadCatalog(path string) (Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("reading %s: %w", path, err)
		}
		data = raw
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}

	for i := range c.Backends {
		if c.Backends[i].Timeout <= 0 {
			c.Backends[i].Timeout = llm.DefaultTimeout
		}
		if c.Backends[i].Model == "" {
			c.Backends[i].Model = c.Backends[i].ID
		}
	}
	for name, p := range c.Profiles {
		if p.MaxWords <= 0 {
			p.MaxWords = defaultMaxWords
			c.Profiles[name] = p
		}
	}

	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks that every backend names a known provider and every
// profile references declared backends.
func (c Catalog) Validate() error {
	known := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.ID == "" {
			return fmt.Errorf("backend without id")
		}
		if known[b.ID] {
			return fmt.Errorf("backend %q declared twice", b.ID)
		}
		if _, ok := c.Providers[b.Provider]; !ok {
			return fmt.Errorf("backend %q uses unknown provider %q", b.ID, b.Provider)
		}
		known[b.ID] = true
	}

	for name, p := range c.Profiles {
		if len(p.Backends) == 0 {
			return fmt.Errorf("profile %q has no backends", name)
		}
		refs := append([]string{}, p.Backends...)
		refs = append(refs, p.Synthesis.Primary, p.Synthesis.Secondary, p.Humanize.Primary, p.Humanize.Secondary)
		for _, ref := range refs {
			if ref != "" && !known[ref] {
				return fmt.Errorf("profile %q references unknown backend %q", name, ref)
			}
		}
		if p.Synthesis.Primary == "" || p.Humanize.Primary == "" {
			return fmt.Errorf("profile %q needs a primary synthesis and humanize backend", name)
		}
	}

	return nil
}

// BackendConfigs resolves every declared backend into an llm.Config, reading
// API keys from the environment variables named by the providers.
func (c Catalog) BackendConfigs() []llm.Config {
	cfgs := make([]llm.Config, 0, len(c.Backends))
	for _, b := range c.Backends {
		p := c.Providers[b.Provider]
		cfgs = append(cfgs, llm.Config{
			ID:          b.ID,
			Provider:    p.Kind,
			APIKey:      os.Getenv(p.APIKeyEnv),
			BaseURL:     p.BaseURL,
			Model:       b.Model,
			Timeout:     b.Timeout,
			MaxTokens:   b.MaxTokens,
			Temperature: b.Temperature,
		})
	}
	return cfgs
}

func (c Catalog) Profile(name string) (ProfileSpec, bool) {
	p, ok := c.Profiles[name]
	return p, ok
}
