package brain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"lumen.app/companion/common/llm"
)

var (
	ErrAllBackendsFailed = errors.New("all backends failed")
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrNoBackends        = errors.New("no backends selected")
)

// AllBackendsFailedError is the only error Discuss returns once fan-out has
// started. Failures maps each backend to its failure reason.
type AllBackendsFailedError struct {
	Failures map[string]string
}

func (e *AllBackendsFailedError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %s", id, e.Failures[id]))
	}
	return fmt.Sprintf("%s (%s)", ErrAllBackendsFailed, strings.Join(parts, "; "))
}

func (e *AllBackendsFailedError) Is(target error) bool {
	return target == ErrAllBackendsFailed
}

// BackendError reports a failed single-backend call.
type BackendError struct {
	Backend string
	Kind    llm.FailureKind
	Reason  string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Backend, e.Reason)
}
