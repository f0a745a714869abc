// Package registry holds the static entity configuration: which entities
// the console may touch, their queryable and writable fields, and whether
// they carry sensitive data. It is loaded once at process start and never
// mutated afterwards.
package registry

import (
	"sort"
	"strings"

	"github.com/campusiq/opsconsole/internal/domain"
)

// EntitySchema describes one registered entity.
type EntitySchema struct {
	Name       string
	Table      string
	Filterable []string
	Writable   []string
	// Sensitive marks identity, permission and financial entities. Any
	// mutation of a sensitive entity classifies as HIGH risk.
	Sensitive bool
}

// FilterableField reports whether the field may appear in a filter.
func (s EntitySchema) FilterableField(field string) bool {
	for _, f := range s.Filterable {
		if f == field {
			return true
		}
	}
	return false
}

// WritableField reports whether the field may be written.
func (s EntitySchema) WritableField(field string) bool {
	for _, f := range s.Writable {
		if f == field {
			return true
		}
	}
	return false
}

// Registry resolves entity names (and their natural-language aliases) to
// schemas. It has no mutation API.
type Registry struct {
	entities map[string]EntitySchema
	aliases  map[string]string
}

// New builds a registry from schemas and an alias table. Alias keys are
// lowercased; schema names are assumed canonical (lowercase singular).
func New(schemas []EntitySchema, aliases map[string]string) *Registry {
	r := &Registry{
		entities: make(map[string]EntitySchema, len(schemas)),
		aliases:  make(map[string]string, len(aliases)),
	}
	for _, s := range schemas {
		r.entities[s.Name] = s
	}
	for alias, canonical := range aliases {
		r.aliases[strings.ToLower(alias)] = canonical
	}
	return r
}

// Resolve maps a raw entity name or alias to its schema.
func (r *Registry) Resolve(name string) (EntitySchema, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	schema, ok := r.entities[key]
	if !ok {
		return EntitySchema{}, &domain.UnknownEntityError{Entity: name}
	}
	return schema, nil
}

// Names returns all canonical entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Match scans free text for the entity name or alias mentioned earliest.
// The subject of an instruction comes before its qualifiers, so "faculty in
// the Electronics department" resolves to faculty, not department. Ties at
// the same position go to the longer token, so "salary record" beats
// "salary".
func (r *Registry) Match(text string) (EntitySchema, bool) {
	lower := strings.ToLower(text)

	bestToken := ""
	bestAt := -1
	bestLen := 0
	consider := func(token, needle string) {
		at := strings.Index(lower, needle)
		if at < 0 {
			return
		}
		if bestAt == -1 || at < bestAt || (at == bestAt && len(needle) > bestLen) {
			bestToken, bestAt, bestLen = token, at, len(needle)
		}
	}
	for name := range r.entities {
		consider(name, name)
		consider(name, strings.ReplaceAll(name, "_", " "))
	}
	for alias := range r.aliases {
		consider(alias, alias)
		consider(alias, strings.ReplaceAll(alias, "_", " "))
	}

	if bestAt == -1 {
		return EntitySchema{}, false
	}
	schema, err := r.Resolve(bestToken)
	if err != nil {
		return EntitySchema{}, false
	}
	return schema, true
}
