package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/registry"
)

// MemoryEntityStore is the in-memory ports.EntityRepository, backing tests
// and local development: same contract, no database.
type MemoryEntityStore struct {
	mu       sync.RWMutex
	registry *registry.Registry
	tables   map[string][]domain.Row
	nextID   int64
}

// NewMemoryEntityStore creates an empty store over the registry.
func NewMemoryEntityStore(reg *registry.Registry) *MemoryEntityStore {
	return &MemoryEntityStore{
		registry: reg,
		tables:   make(map[string][]domain.Row),
		nextID:   1,
	}
}

// Seed inserts rows directly, assigning ids to rows without one.
func (s *MemoryEntityStore) Seed(entity string, rows ...domain.Row) error {
	schema, err := s.registry.Resolve(entity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		r := row.Clone()
		if r.ID() == nil {
			r[domain.RowID] = s.nextID
			s.nextID++
		}
		s.tables[schema.Name] = append(s.tables[schema.Name], r)
	}
	return nil
}

// Count implements ports.EntityRepository.
func (s *MemoryEntityStore) Count(_ context.Context, entity string, filters domain.Filters) (int, error) {
	rows, err := s.selectRows(entity, filters, 0)
	return len(rows), err
}

// Select implements ports.EntityRepository.
func (s *MemoryEntityStore) Select(_ context.Context, entity string, filters domain.Filters) ([]domain.Row, error) {
	return s.selectRows(entity, filters, 0)
}

// SelectLimit implements ports.EntityRepository.
func (s *MemoryEntityStore) SelectLimit(_ context.Context, entity string, filters domain.Filters, limit int) ([]domain.Row, error) {
	return s.selectRows(entity, filters, limit)
}

// Aggregate implements ports.EntityRepository.
func (s *MemoryEntityStore) Aggregate(_ context.Context, entity string, filters domain.Filters, agg domain.Aggregate) (float64, error) {
	rows, err := s.selectRows(entity, filters, 0)
	if err != nil {
		return 0, err
	}
	if agg.Op == domain.AggCount {
		return float64(len(rows)), nil
	}

	var sum float64
	var count int
	var min, max float64
	for _, row := range rows {
		v, ok := toFloat(row[agg.Field])
		if !ok {
			continue
		}
		if count == 0 {
			min, max = v, v
		} else {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, nil
	}

	switch agg.Op {
	case domain.AggAvg:
		return sum / float64(count), nil
	case domain.AggMin:
		return min, nil
	case domain.AggMax:
		return max, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate: %s", agg.Op)
	}
}

// Insert implements ports.EntityRepository.
func (s *MemoryEntityStore) Insert(_ context.Context, entity string, values map[string]interface{}) (domain.Row, error) {
	schema, err := s.registry.Resolve(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := domain.Row{}
	for k, v := range values {
		row[k] = v
	}
	if row.ID() == nil {
		row[domain.RowID] = s.nextID
		s.nextID++
	}
	s.tables[schema.Name] = append(s.tables[schema.Name], row)
	return row.Clone(), nil
}

// Update implements ports.EntityRepository.
func (s *MemoryEntityStore) Update(_ context.Context, entity string, filters domain.Filters, values map[string]interface{}) ([]domain.Row, error) {
	schema, err := s.registry.Resolve(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []domain.Row
	for i, row := range s.tables[schema.Name] {
		if !matchRow(row, filters) {
			continue
		}
		next := row.Clone()
		for k, v := range values {
			next[k] = v
		}
		s.tables[schema.Name][i] = next
		updated = append(updated, next.Clone())
	}
	return updated, nil
}

// Delete implements ports.EntityRepository.
func (s *MemoryEntityStore) Delete(_ context.Context, entity string, filters domain.Filters) ([]domain.Row, error) {
	schema, err := s.registry.Resolve(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed, kept []domain.Row
	for _, row := range s.tables[schema.Name] {
		if matchRow(row, filters) {
			removed = append(removed, row.Clone())
		} else {
			kept = append(kept, row)
		}
	}
	s.tables[schema.Name] = kept
	return removed, nil
}

// Restore implements ports.EntityRepository.
func (s *MemoryEntityStore) Restore(_ context.Context, entity string, row domain.Row) (domain.Row, error) {
	schema, err := s.registry.Resolve(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := row.Clone()
	if r.ID() == nil {
		r[domain.RowID] = s.nextID
		s.nextID++
	} else if id, ok := toFloat(r.ID()); ok && int64(id) >= s.nextID {
		s.nextID = int64(id) + 1
	}
	s.tables[schema.Name] = append(s.tables[schema.Name], r)
	return r.Clone(), nil
}

func (s *MemoryEntityStore) selectRows(entity string, filters domain.Filters, limit int) ([]domain.Row, error) {
	schema, err := s.registry.Resolve(entity)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Row
	for _, row := range s.tables[schema.Name] {
		if !matchRow(row, filters) {
			continue
		}
		out = append(out, row.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// snapshot and restore support the transactional wrapper.

func (s *MemoryEntityStore) snapshot() map[string][]domain.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.Row, len(s.tables))
	for name, rows := range s.tables {
		out[name] = domain.CloneRows(rows)
	}
	return out
}

func (s *MemoryEntityStore) restore(snap map[string][]domain.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = snap
}

func matchRow(row domain.Row, filters domain.Filters) bool {
	for field, p := range filters {
		if !matchValue(row[field], p) {
			return false
		}
	}
	return true
}

// matchValue compares a row value against a predicate, coercing numerics so
// int and float forms of the same number compare equal.
func matchValue(v interface{}, p domain.Predicate) bool {
	if fv, ok1 := toFloat(v); ok1 {
		if fp, ok2 := toFloat(p.Value); ok2 {
			switch p.Op {
			case domain.OpEq:
				return fv == fp
			case domain.OpNe:
				return fv != fp
			case domain.OpLt:
				return fv < fp
			case domain.OpLte:
				return fv <= fp
			case domain.OpGt:
				return fv > fp
			case domain.OpGte:
				return fv >= fp
			}
		}
	}

	sv := fmt.Sprintf("%v", v)
	sp := fmt.Sprintf("%v", p.Value)
	switch p.Op {
	case domain.OpEq:
		return strings.EqualFold(sv, sp)
	case domain.OpNe:
		return !strings.EqualFold(sv, sp)
	case domain.OpLike:
		return strings.Contains(strings.ToLower(sv), strings.ToLower(sp))
	case domain.OpLt:
		return sv < sp
	case domain.OpLte:
		return sv <= sp
	case domain.OpGt:
		return sv > sp
	case domain.OpGte:
		return sv >= sp
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
