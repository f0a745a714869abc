package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
)

// FallbackConfidence is the fixed confidence reported by the deterministic
// strategy. It sits below the clarification threshold on purpose: a keyword
// guess is never mistaken for a validated intent downstream.
const FallbackConfidence = 0.5

// KeywordExtractor is the deterministic fallback strategy: verb and keyword
// matching over the raw text. It always returns an Intent and never fails;
// when it cannot resolve an entity or the operation lacks scope or values,
// it flags the result ambiguous with a clarifying question.
type KeywordExtractor struct {
	registry *registry.Registry
}

// NewKeywordExtractor creates the fallback strategy over the given registry.
func NewKeywordExtractor(reg *registry.Registry) *KeywordExtractor {
	return &KeywordExtractor{registry: reg}
}

var (
	createWords  = []string{"create", "add", "insert", "register", "enroll", "new "}
	updateWords  = []string{"update", "modify", "change", "set ", "edit"}
	deleteWords  = []string{"delete", "remove", "drop", "erase"}
	analyzeWords = []string{"how many", "count", "average", "avg", "mean", "sum", "total",
		"statistics", "stats", "analyze", "analysis", "highest", "lowest",
		"maximum", "minimum", "trend"}

	deptPhraseRe = regexp.MustCompile(`(?i)(?:in|from|of|for)\s+(?:the\s+)?([a-z][a-z ]*?)\s+(?:department|dept|branch)`)
	deptCodeRe   = regexp.MustCompile(`\b([A-Z]{2,6})\b\s+(?:students?|faculty|courses?)`)
	sectionRe    = regexp.MustCompile(`(?i)\bsection\s+([a-z])\b`)
	semesterRe   = regexp.MustCompile(`(?i)\bsemester\s+(\d+)\b`)
)

// Extract implements ports.IntentExtractor.
func (k *KeywordExtractor) Extract(_ context.Context, input ports.ExtractorInput) (domain.Intent, error) {
	msg := strings.ToLower(strings.TrimSpace(input.Message))

	out := domain.Intent{
		Type:       detectType(msg),
		Filters:    domain.Filters{},
		Values:     map[string]interface{}{},
		Confidence: FallbackConfidence,
	}

	schema, found := k.registry.Match(input.Message)
	if found {
		out.Entity = schema.Name
		k.parseFilters(&out, input.Message, msg, schema)
		if out.Type == domain.IntentCreate || out.Type == domain.IntentUpdate {
			parseValues(&out, msg, schema)
		}
		if out.Type == domain.IntentAnalyze {
			out.Aggregate = detectAggregate(msg, schema)
		}
	}

	flagAmbiguity(&out, found)
	return out, nil
}

func detectType(msg string) domain.IntentType {
	switch {
	case containsAny(msg, deleteWords):
		return domain.IntentDelete
	case containsAny(msg, updateWords):
		return domain.IntentUpdate
	case containsAny(msg, createWords):
		return domain.IntentCreate
	case containsAny(msg, analyzeWords):
		return domain.IntentAnalyze
	default:
		return domain.IntentRead
	}
}

// parseFilters extracts simple comparison filters: department mentions,
// section letters, semester numbers, activity flags, and numeric
// comparisons ("below N", "above N") on any filterable field.
func (k *KeywordExtractor) parseFilters(out *domain.Intent, original, msg string, schema registry.EntitySchema) {
	if schema.FilterableField("department") {
		if m := deptPhraseRe.FindStringSubmatch(original); m != nil {
			out.Filters["department"] = domain.Eq(strings.TrimSpace(m[1]))
		} else if m := deptCodeRe.FindStringSubmatch(original); m != nil {
			out.Filters["department"] = domain.Eq(m[1])
		}
	}

	if schema.FilterableField("section") {
		if m := sectionRe.FindStringSubmatch(original); m != nil {
			out.Filters["section"] = domain.Eq(strings.ToUpper(m[1]))
		}
	}

	// "semester 3" filters on READ and friends; for UPDATE it is usually a
	// new value ("update semester to 4"), handled by parseValues.
	if schema.FilterableField("semester") && out.Type != domain.IntentUpdate {
		if m := semesterRe.FindStringSubmatch(msg); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				out.Filters["semester"] = domain.Eq(n)
			}
		}
	}

	if schema.FilterableField("is_active") {
		if strings.Contains(msg, "inactive") {
			out.Filters["is_active"] = domain.Eq(false)
		} else if strings.Contains(msg, "active") {
			out.Filters["is_active"] = domain.Eq(true)
		}
	}

	for _, field := range schema.Filterable {
		if _, taken := out.Filters[field]; taken {
			continue
		}
		if p, ok := numericComparison(msg, field); ok {
			out.Filters[field] = p
		}
	}
}

// numericComparison matches "<field> below N", "<field> above N" and the
// symbolic forms.
func numericComparison(msg, field string) (domain.Predicate, bool) {
	name := strings.ReplaceAll(field, "_", " ")
	below := regexp.MustCompile(fmt.Sprintf(`\b%s\s*(?:below|under|less than|<)\s*([0-9.]+)`, regexp.QuoteMeta(name)))
	above := regexp.MustCompile(fmt.Sprintf(`\b%s\s*(?:above|over|greater than|more than|>)\s*([0-9.]+)`, regexp.QuoteMeta(name)))

	if m := below.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return domain.Lt(v), true
		}
	}
	if m := above.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return domain.Gt(v), true
		}
	}
	return domain.Predicate{}, false
}

// parseValues extracts "<field> to <value>" assignments for writable fields.
func parseValues(out *domain.Intent, msg string, schema registry.EntitySchema) {
	for _, field := range schema.Writable {
		name := strings.ReplaceAll(field, "_", " ")
		re := regexp.MustCompile(fmt.Sprintf(`\b%s\s+(?:to|=)\s*([a-zA-Z0-9.]+)`, regexp.QuoteMeta(name)))
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		raw := m[1]
		if n, err := strconv.Atoi(raw); err == nil {
			out.Values[field] = n
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			out.Values[field] = f
		} else {
			out.Values[field] = raw
		}
	}
}

func detectAggregate(msg string, schema registry.EntitySchema) *domain.Aggregate {
	field := ""
	for _, f := range schema.Filterable {
		if f == domain.RowID {
			continue
		}
		if strings.Contains(msg, strings.ReplaceAll(f, "_", " ")) {
			field = f
			break
		}
	}

	switch {
	case strings.Contains(msg, "average") || strings.Contains(msg, "avg") || strings.Contains(msg, "mean"):
		return &domain.Aggregate{Op: domain.AggAvg, Field: field}
	case strings.Contains(msg, "highest") || strings.Contains(msg, "maximum") || strings.Contains(msg, "max "):
		return &domain.Aggregate{Op: domain.AggMax, Field: field}
	case strings.Contains(msg, "lowest") || strings.Contains(msg, "minimum") || strings.Contains(msg, "min "):
		return &domain.Aggregate{Op: domain.AggMin, Field: field}
	default:
		return &domain.Aggregate{Op: domain.AggCount}
	}
}

// flagAmbiguity marks the intent ambiguous when the guess is missing the
// pieces a safe execution needs, and phrases the clarifying question.
func flagAmbiguity(out *domain.Intent, entityFound bool) {
	var missing []string
	if !entityFound {
		missing = append(missing, "entity")
	}
	if out.Type.Mutates() && out.Type != domain.IntentCreate && len(out.Filters) == 0 {
		missing = append(missing, "scope")
	}
	if (out.Type == domain.IntentCreate || out.Type == domain.IntentUpdate) && len(out.Values) == 0 {
		missing = append(missing, "values")
	}

	if len(missing) > 0 {
		out.Ambiguous = true
		out.Question = fmt.Sprintf("Please clarify the missing operation details: %s.", strings.Join(missing, ", "))
	}
}

func containsAny(msg string, words []string) bool {
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}
