package intent

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func extract(t *testing.T, message string) domain.Intent {
	t.Helper()
	k := NewKeywordExtractor(registry.Campus())
	out, err := k.Extract(context.Background(), ports.ExtractorInput{Message: message})
	require.NoError(t, err)
	return out
}

func TestKeywordIntentTypes(t *testing.T) {
	tests := []struct {
		message string
		want    domain.IntentType
	}{
		{"show all students", domain.IntentRead},
		{"list courses in semester 3", domain.IntentRead},
		{"delete inactive users", domain.IntentDelete},
		{"update semester to 4 for CSE students", domain.IntentUpdate},
		{"add a new course", domain.IntentCreate},
		{"how many students in CSE", domain.IntentAnalyze},
		{"average cgpa of CSE students", domain.IntentAnalyze},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			out := extract(t, tt.message)
			assert.Equal(t, tt.want, out.Type)
			assert.Equal(t, FallbackConfidence, out.Confidence)
		})
	}
}

func TestKeywordFilters(t *testing.T) {
	out := extract(t, "show CSE students in section A with cgpa below 7.5")
	assert.Equal(t, "student", out.Entity)
	assert.Equal(t, domain.Eq("CSE"), out.Filters["department"])
	assert.Equal(t, domain.Eq("A"), out.Filters["section"])
	assert.Equal(t, domain.Lt(7.5), out.Filters["cgpa"])
}

func TestKeywordDepartmentPhrase(t *testing.T) {
	out := extract(t, "list faculty in the Electronics department")
	assert.Equal(t, "faculty", out.Entity)
	assert.Equal(t, domain.Eq("Electronics"), out.Filters["department"])
}

func TestKeywordInactiveUsers(t *testing.T) {
	out := extract(t, "delete inactive users")
	assert.Equal(t, domain.IntentDelete, out.Type)
	assert.Equal(t, "user", out.Entity)
	assert.Equal(t, domain.Eq(false), out.Filters["is_active"])
	assert.False(t, out.Ambiguous)
}

func TestKeywordUpdateValues(t *testing.T) {
	out := extract(t, "update semester to 4 for CSE students")
	assert.Equal(t, domain.IntentUpdate, out.Type)
	assert.Equal(t, "student", out.Entity)
	assert.Equal(t, 4, out.Values["semester"])
	assert.Equal(t, domain.Eq("CSE"), out.Filters["department"])
	assert.False(t, out.Ambiguous)
}

func TestKeywordAggregate(t *testing.T) {
	out := extract(t, "average cgpa of CSE students")
	require.NotNil(t, out.Aggregate)
	assert.Equal(t, domain.AggAvg, out.Aggregate.Op)
	assert.Equal(t, "cgpa", out.Aggregate.Field)

	out = extract(t, "how many students in CSE")
	require.NotNil(t, out.Aggregate)
	assert.Equal(t, domain.AggCount, out.Aggregate.Op)
}

func TestKeywordAmbiguity(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"no entity", "delete everything now"},
		{"mutation without scope", "delete students"},
		{"update without values", "update the students"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := extract(t, tt.message)
			assert.True(t, out.Ambiguous)
			assert.NotEmpty(t, out.Question)
		})
	}
}

// failingExtractor simulates the inference service erroring out.
type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, ports.ExtractorInput) (domain.Intent, error) {
	return domain.Intent{}, errors.New("inference unavailable")
}

func TestChainFallsBack(t *testing.T) {
	reg := registry.Campus()
	chain := NewChain(failingExtractor{}, NewKeywordExtractor(reg), 0, quietLogger())

	out, err := chain.Extract(context.Background(), ports.ExtractorInput{Message: "show all students"})
	require.NoError(t, err, "primary failures must be absorbed")
	assert.Equal(t, "student", out.Entity)
	assert.Equal(t, FallbackConfidence, out.Confidence)
}

// scriptedExtractor returns a canned intent, standing in for inference.
type scriptedExtractor struct {
	intent domain.Intent
}

func (s scriptedExtractor) Extract(context.Context, ports.ExtractorInput) (domain.Intent, error) {
	return s.intent, nil
}

func TestNormalizerClarifyGate(t *testing.T) {
	reg := registry.Campus()

	tests := []struct {
		name     string
		intent   domain.Intent
		clarifes bool
	}{
		{
			name:   "confident and unambiguous passes",
			intent: domain.Intent{Type: domain.IntentRead, Entity: "student", Confidence: 0.9},
		},
		{
			name:     "below threshold halts",
			intent:   domain.Intent{Type: domain.IntentRead, Entity: "student", Confidence: 0.6},
			clarifes: true,
		},
		{
			name:     "ambiguous halts even when confident",
			intent:   domain.Intent{Type: domain.IntentRead, Entity: "student", Confidence: 0.95, Ambiguous: true, Question: "Which rows?"},
			clarifes: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(scriptedExtractor{intent: tt.intent}, reg, ConfidenceThreshold)
			out, err := n.Normalize(context.Background(), "whatever", domain.RoleAdmin)
			require.NoError(t, err)

			clarify := n.Clarify(out)
			if tt.clarifes {
				require.NotNil(t, clarify)
				assert.NotEmpty(t, clarify.Question)
			} else {
				assert.Nil(t, clarify)
			}
		})
	}
}

func TestNormalizerResolvesAliases(t *testing.T) {
	reg := registry.Campus()
	n := NewNormalizer(scriptedExtractor{intent: domain.Intent{
		Type: domain.IntentRead, Entity: "teachers", Confidence: 0.9,
	}}, reg, ConfidenceThreshold)

	out, err := n.Normalize(context.Background(), "list teachers", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "faculty", out.Entity)
}

func TestNormalizerUnknownEntityBecomesAmbiguous(t *testing.T) {
	reg := registry.Campus()
	n := NewNormalizer(scriptedExtractor{intent: domain.Intent{
		Type: domain.IntentRead, Entity: "spaceship", Confidence: 0.99,
	}}, reg, ConfidenceThreshold)

	out, err := n.Normalize(context.Background(), "list spaceships", domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, out.Ambiguous)
	assert.NotNil(t, n.Clarify(out))
}

func TestNormalizerClampsConfidence(t *testing.T) {
	reg := registry.Campus()
	n := NewNormalizer(scriptedExtractor{intent: domain.Intent{
		Type: domain.IntentRead, Entity: "student", Confidence: 3.2,
	}}, reg, ConfidenceThreshold)

	out, err := n.Normalize(context.Background(), "list students", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Confidence)
}
