package service

import (
	"fmt"
	"sort"

	"lumen.app/companion/core/config"
	"lumen.app/companion/internal/brain"
)

// Catalog profiles used by the services.
const (
	ProfileDiscussion = "discussion"
	ProfileCompanion  = "companion"
	ProfileSummary    = "summary"
)

// Pipelines holds one pipeline per catalog profile, all sharing an invoker
// and a sanitizer.
type Pipelines map[string]*brain.Pipeline

func NewPipelines(catalog config.Catalog, invoker brain.Invoker) (Pipelines, error) {
	sanitizer, err := brain.NewSanitizer(catalog.Sanitizer.ReasoningTags, catalog.Sanitizer.Denylist)
	if err != nil {
		return nil, fmt.Errorf("building sanitizer: %w", err)
	}

	pipelines := make(Pipelines, len(catalog.Profiles))
	for name, ps := range catalog.Profiles {
		pipelines[name] = brain.NewPipeline(brain.Profile{
			Name:      name,
			Backends:  ps.Backends,
			Synthesis: brain.Chain{Primary: ps.Synthesis.Primary, Secondary: ps.Synthesis.Secondary},
			Humanize:  brain.Chain{Primary: ps.Humanize.Primary, Secondary: ps.Humanize.Secondary},
			MaxWords:  ps.MaxWords,
		}, invoker, sanitizer)
	}

	for _, required := range []string{ProfileDiscussion, ProfileCompanion, ProfileSummary} {
		if _, ok := pipelines[required]; !ok {
			return nil, fmt.Errorf("catalog has no %q profile", required)
		}
	}
	return pipelines, nil
}

// Surfaces maps chat surfaces to their pipelines.
func (p Pipelines) Surfaces() map[Surface]*brain.Pipeline {
	return map[Surface]*brain.Pipeline{
		SurfaceChat: p[ProfileDiscussion],
		SurfaceRoom: p[ProfileCompanion],
	}
}

// Names returns the profile names in sorted order.
func (p Pipelines) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
