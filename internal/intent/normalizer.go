// Package intent turns free text into a structured domain.Intent using two
// composable strategies: an inference-backed extractor and a deterministic
// keyword fallback. The composition is part of the contract: inference
// failures never surface to the caller, they switch strategies.
package intent

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
)

// ConfidenceThreshold is the cutoff below which (or when flagged ambiguous)
// the pipeline halts and asks the user to clarify.
const ConfidenceThreshold = 0.75

// Chain tries the primary extractor and falls back to the secondary when
// the primary errors or times out. Both strategies return the same Intent
// shape, so downstream stages cannot tell which one ran.
type Chain struct {
	primary  ports.IntentExtractor
	fallback ports.IntentExtractor
	timeout  time.Duration
	log      *logrus.Logger
}

// NewChain composes primary and fallback. A zero timeout disables the extra
// deadline (the primary still honors the caller's context).
func NewChain(primary, fallback ports.IntentExtractor, timeout time.Duration, log *logrus.Logger) *Chain {
	return &Chain{primary: primary, fallback: fallback, timeout: timeout, log: log}
}

// Extract implements ports.IntentExtractor.
func (c *Chain) Extract(ctx context.Context, input ports.ExtractorInput) (domain.Intent, error) {
	if c.primary != nil {
		extractCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			extractCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		out, err := c.primary.Extract(extractCtx, input)
		if err == nil {
			return out, nil
		}
		// Inference failures are absorbed, not propagated: low-severity
		// log, then the deterministic strategy.
		c.log.WithError(err).Warn("intent inference failed, using deterministic fallback")
	}

	return c.fallback.Extract(ctx, input)
}

// Normalizer is the full intent stage: it hands the extractor the registry
// vocabulary, validates the result against the registry, and applies the
// clarification gate.
type Normalizer struct {
	extractor ports.IntentExtractor
	registry  *registry.Registry
	threshold float64
}

// NewNormalizer creates a normalizer. A non-positive threshold falls back
// to ConfidenceThreshold.
func NewNormalizer(extractor ports.IntentExtractor, reg *registry.Registry, threshold float64) *Normalizer {
	if threshold <= 0 {
		threshold = ConfidenceThreshold
	}
	return &Normalizer{extractor: extractor, registry: reg, threshold: threshold}
}

// Normalize produces a validated Intent for the message. The returned
// intent always names a registered entity unless it is flagged ambiguous.
func (n *Normalizer) Normalize(ctx context.Context, message string, role domain.Role) (domain.Intent, error) {
	input := ports.ExtractorInput{
		Message:  message,
		Role:     role,
		Entities: n.vocabulary(),
	}

	out, err := n.extractor.Extract(ctx, input)
	if err != nil {
		return domain.Intent{}, err
	}

	if !out.Type.Valid() {
		out.Type = domain.IntentRead
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	} else if out.Confidence > 1 {
		out.Confidence = 1
	}

	if out.Entity != "" {
		schema, err := n.registry.Resolve(out.Entity)
		if err != nil {
			out.Ambiguous = true
			if out.Question == "" {
				out.Question = "Which entity should this operate on?"
			}
			out.Entity = ""
		} else {
			out.Entity = schema.Name
		}
	} else if !out.Ambiguous {
		out.Ambiguous = true
		out.Question = "Which entity should this operate on?"
	}

	return out, nil
}

// Clarify applies the clarification gate: it returns the error that halts
// the pipeline when the intent cannot be trusted, or nil.
func (n *Normalizer) Clarify(in domain.Intent) *domain.ClarificationError {
	if in.Confidence >= n.threshold && !in.Ambiguous {
		return nil
	}
	question := in.Question
	if question == "" {
		question = "Please clarify the missing operation details."
	}
	return &domain.ClarificationError{Question: question, Confidence: in.Confidence}
}

func (n *Normalizer) vocabulary() []ports.EntityVocabulary {
	names := n.registry.Names()
	vocab := make([]ports.EntityVocabulary, 0, len(names))
	for _, name := range names {
		schema, err := n.registry.Resolve(name)
		if err != nil {
			continue
		}
		vocab = append(vocab, ports.EntityVocabulary{
			Name:       schema.Name,
			Filterable: schema.Filterable,
			Writable:   schema.Writable,
		})
	}
	return vocab
}
