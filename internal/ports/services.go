package ports

import (
	"context"
	"time"

	"github.com/campusiq/opsconsole/internal/domain"
)

// ExtractorInput is what an intent extraction strategy gets to work with:
// the raw message, the acting role, and the registry's entity vocabulary.
type ExtractorInput struct {
	Message  string
	Role     domain.Role
	Entities []EntityVocabulary
}

// EntityVocabulary is the per-entity field list handed to the inference
// service so it only proposes registered entities and fields.
type EntityVocabulary struct {
	Name       string   `json:"name"`
	Filterable []string `json:"filterable"`
	Writable   []string `json:"writable"`
}

// IntentExtractor turns raw text into a structured Intent. The
// inference-backed implementation may fail or time out; the deterministic
// fallback never does. Both return the same Intent shape so downstream
// stages cannot tell which strategy ran.
type IntentExtractor interface {
	Extract(ctx context.Context, input ExtractorInput) (domain.Intent, error)
}

// ScopeResolver looks up the ownership boundary for an actor: the student
// row bound to a student account, or the department a faculty member
// belongs to.
type ScopeResolver interface {
	Resolve(ctx context.Context, actor domain.Actor) (domain.Scope, error)
}

// PlanLocker serializes execution and rollback for the same plan. Acquire
// fails fast when another worker holds the lock; the returned release
// function is safe to call once.
type PlanLocker interface {
	Acquire(ctx context.Context, planID string, ttl time.Duration) (release func(), err error)
}

// SecondFactorVerifier checks the second-factor code accompanying a
// HIGH-risk approval decision.
type SecondFactorVerifier interface {
	Verify(code string) bool
}
