package domain

// IntentType classifies what a command wants to do with an entity.
type IntentType string

const (
	IntentRead    IntentType = "READ"
	IntentCreate  IntentType = "CREATE"
	IntentUpdate  IntentType = "UPDATE"
	IntentDelete  IntentType = "DELETE"
	IntentAnalyze IntentType = "ANALYZE"
)

// Valid reports whether the intent type is one of the known operations.
func (t IntentType) Valid() bool {
	switch t {
	case IntentRead, IntentCreate, IntentUpdate, IntentDelete, IntentAnalyze:
		return true
	}
	return false
}

// Mutates reports whether the intent type writes to the data store.
func (t IntentType) Mutates() bool {
	switch t {
	case IntentCreate, IntentUpdate, IntentDelete:
		return true
	}
	return false
}

// FilterOp is a comparison operator applied to a single field.
type FilterOp string

const (
	OpEq   FilterOp = "eq"
	OpNe   FilterOp = "ne"
	OpLt   FilterOp = "lt"
	OpLte  FilterOp = "lte"
	OpGt   FilterOp = "gt"
	OpGte  FilterOp = "gte"
	OpLike FilterOp = "like"
)

// Predicate is a single field condition: the field must satisfy Op against Value.
type Predicate struct {
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// Filters maps field names to the predicate each must satisfy. All entries
// are combined with AND.
type Filters map[string]Predicate

// Predicate constructors, mostly for call-site readability.

func Eq(v interface{}) Predicate   { return Predicate{Op: OpEq, Value: v} }
func Ne(v interface{}) Predicate   { return Predicate{Op: OpNe, Value: v} }
func Lt(v interface{}) Predicate   { return Predicate{Op: OpLt, Value: v} }
func Lte(v interface{}) Predicate  { return Predicate{Op: OpLte, Value: v} }
func Gt(v interface{}) Predicate   { return Predicate{Op: OpGt, Value: v} }
func Gte(v interface{}) Predicate  { return Predicate{Op: OpGte, Value: v} }
func Like(v interface{}) Predicate { return Predicate{Op: OpLike, Value: v} }

// AggregateOp is the aggregation requested by an ANALYZE intent.
type AggregateOp string

const (
	AggCount AggregateOp = "count"
	AggAvg   AggregateOp = "avg"
	AggMin   AggregateOp = "min"
	AggMax   AggregateOp = "max"
)

// Aggregate describes an ANALYZE computation over a numeric field. Field is
// empty for count.
type Aggregate struct {
	Op    AggregateOp `json:"op"`
	Field string      `json:"field,omitempty"`
}

// Intent is the structured interpretation of a free-text instruction. It is
// a best-effort guess: Confidence and Ambiguous tell downstream stages how
// much to trust it. An Intent is never persisted standalone, only embedded
// in a Plan.
type Intent struct {
	Type       IntentType             `json:"type"`
	Entity     string                 `json:"entity"`
	Filters    Filters                `json:"filters,omitempty"`
	Values     map[string]interface{} `json:"values,omitempty"`
	Aggregate  *Aggregate             `json:"aggregate,omitempty"`
	Confidence float64                `json:"confidence"`
	Ambiguous  bool                   `json:"ambiguous"`
	Question   string                 `json:"question,omitempty"`
}
