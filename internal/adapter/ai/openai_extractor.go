// Package ai implements the inference-backed intent extraction strategy
// against an OpenAI-compatible chat completions API. Availability is never
// assumed: every call carries a bounded timeout and callers compose this
// extractor with the deterministic fallback.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// Config holds the inference service settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	TimeoutMs int
}

// OpenAIExtractor implements ports.IntentExtractor over chat completions.
type OpenAIExtractor struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIExtractor creates the inference-backed extractor.
func NewOpenAIExtractor(config Config) *OpenAIExtractor {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := config.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := time.Duration(config.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &OpenAIExtractor{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// wireIntent is the JSON shape the model is asked to return. Filter values
// may be either a bare value (treated as equality) or an {op, value} pair.
type wireIntent struct {
	Intent     string                     `json:"intent"`
	Entity     string                     `json:"entity"`
	Filters    map[string]json.RawMessage `json:"filters"`
	Values     map[string]interface{}     `json:"values"`
	Aggregate  *domain.Aggregate          `json:"aggregate"`
	Confidence float64                    `json:"confidence"`
	Ambiguous  bool                       `json:"ambiguous"`
	Question   string                     `json:"question"`
}

// Extract implements ports.IntentExtractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, input ports.ExtractorInput) (domain.Intent, error) {
	prompt := buildPrompt(input)

	requestBody := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a query classifier for an ERP operations console. Respond with a single JSON object and nothing else."},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  400,
		"temperature": 0,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return domain.Intent{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("failed to call inference API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Intent{}, fmt.Errorf("inference API error: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.Intent{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return domain.Intent{}, fmt.Errorf("no choices in response")
	}

	return parseWireIntent(response.Choices[0].Message.Content)
}

func buildPrompt(input ports.ExtractorInput) string {
	var vocab strings.Builder
	for _, entity := range input.Entities {
		fmt.Fprintf(&vocab, "- %s (filterable: %s; writable: %s)\n",
			entity.Name,
			strings.Join(entity.Filterable, ", "),
			strings.Join(entity.Writable, ", "))
	}

	return fmt.Sprintf(`Extract a strict JSON object describing the requested ERP data operation.

Keys, exactly:
  intent: one of READ, CREATE, UPDATE, DELETE, ANALYZE
  entity: canonical lowercase singular entity name from the list below
  filters: object mapping field -> {"op": "eq|ne|lt|lte|gt|gte|like", "value": ...}
  values: object mapping field -> new value (CREATE/UPDATE only)
  aggregate: {"op": "count|avg|min|max", "field": "..."} for ANALYZE, else null
  confidence: float in [0,1]
  ambiguous: boolean
  question: clarifying question when ambiguous, else null

Entities:
%s
Acting role: %s
Message: %q`, vocab.String(), input.Role, input.Message)
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseWireIntent pulls the first JSON object out of the model output and
// maps it to a domain.Intent. Models occasionally wrap the object in fences
// or prose despite instructions.
func parseWireIntent(content string) (domain.Intent, error) {
	raw := jsonObjectRe.FindString(content)
	if raw == "" {
		return domain.Intent{}, fmt.Errorf("no JSON object in inference output")
	}

	var wire wireIntent
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return domain.Intent{}, fmt.Errorf("failed to parse inference output: %w", err)
	}

	out := domain.Intent{
		Type:       domain.IntentType(strings.ToUpper(strings.TrimSpace(wire.Intent))),
		Entity:     strings.ToLower(strings.TrimSpace(wire.Entity)),
		Filters:    domain.Filters{},
		Values:     wire.Values,
		Aggregate:  wire.Aggregate,
		Confidence: wire.Confidence,
		Ambiguous:  wire.Ambiguous,
		Question:   wire.Question,
	}
	if !out.Type.Valid() {
		out.Type = domain.IntentRead
	}

	for field, raw := range wire.Filters {
		out.Filters[field] = parsePredicate(raw)
	}
	return out, nil
}

// parsePredicate accepts {"op":..,"value":..} or a bare value (equality).
func parsePredicate(raw json.RawMessage) domain.Predicate {
	var p domain.Predicate
	if err := json.Unmarshal(raw, &p); err == nil && p.Op != "" {
		return p
	}
	var value interface{}
	_ = json.Unmarshal(raw, &value)
	return domain.Eq(value)
}
