package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the same repositories
// run standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresEntityStore implements EntityRepository over PostgreSQL. Table and
// column names come exclusively from the entity registry, never from user
// input, so queries stay injection-safe despite being assembled dynamically.
type PostgresEntityStore struct {
	db  dbtx
	reg *registry.Registry
}

// NewPostgresEntityStore creates a PostgreSQL entity store.
func NewPostgresEntityStore(db dbtx, reg *registry.Registry) ports.EntityRepository {
	return &PostgresEntityStore{db: db, reg: reg}
}

var sqlOps = map[domain.FilterOp]string{
	domain.OpEq:  "=",
	domain.OpNe:  "<>",
	domain.OpLt:  "<",
	domain.OpLte: "<=",
	domain.OpGt:  ">",
	domain.OpGte: ">=",
}

// buildWhere renders the filter map as an ANDed WHERE clause. Fields are
// iterated in sorted order so the generated SQL is deterministic.
func buildWhere(schema registry.EntitySchema, filters domain.Filters, argIndex int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var conditions []string
	var args []interface{}

	for _, field := range fields {
		if field != domain.RowID && !schema.FilterableField(field) {
			return "", nil, fmt.Errorf("field %q is not filterable on %s", field, schema.Name)
		}
		pred := filters[field]
		switch pred.Op {
		case domain.OpLike:
			conditions = append(conditions, fmt.Sprintf("%s::text ILIKE $%d", field, argIndex))
			args = append(args, "%"+fmt.Sprintf("%v", pred.Value)+"%")
		default:
			op, ok := sqlOps[pred.Op]
			if !ok {
				return "", nil, fmt.Errorf("unknown filter operator %q", pred.Op)
			}
			conditions = append(conditions, fmt.Sprintf("%s %s $%d", field, op, argIndex))
			args = append(args, pred.Value)
		}
		argIndex++
	}

	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// Count returns the number of rows matching the filters.
func (s *PostgresEntityStore) Count(ctx context.Context, entity string, filters domain.Filters) (int, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return 0, err
	}

	where, args, err := buildWhere(schema, filters, 1)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", schema.Table, where)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", entity, err)
	}
	return count, nil
}

// Select returns all rows matching the filters.
func (s *PostgresEntityStore) Select(ctx context.Context, entity string, filters domain.Filters) ([]domain.Row, error) {
	return s.selectRows(ctx, entity, filters, 0)
}

// SelectLimit returns at most limit rows matching the filters.
func (s *PostgresEntityStore) SelectLimit(ctx context.Context, entity string, filters domain.Filters, limit int) ([]domain.Row, error) {
	return s.selectRows(ctx, entity, filters, limit)
}

func (s *PostgresEntityStore) selectRows(ctx context.Context, entity string, filters domain.Filters, limit int) ([]domain.Row, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(schema, filters, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s", schema.Table, where, domain.RowID)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s rows: %w", entity, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Aggregate computes a numeric aggregate over rows matching the filters.
func (s *PostgresEntityStore) Aggregate(ctx context.Context, entity string, filters domain.Filters, agg domain.Aggregate) (float64, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return 0, err
	}

	var expr string
	switch agg.Op {
	case domain.AggCount:
		expr = "COUNT(*)"
	case domain.AggAvg, domain.AggMin, domain.AggMax:
		if agg.Field == "" {
			return 0, fmt.Errorf("aggregate %s requires a field", agg.Op)
		}
		if !schema.FilterableField(agg.Field) {
			return 0, fmt.Errorf("field %q is not queryable on %s", agg.Field, schema.Name)
		}
		expr = fmt.Sprintf("COALESCE(%s(%s), 0)", strings.ToUpper(string(agg.Op)), agg.Field)
	default:
		return 0, fmt.Errorf("unknown aggregate operator %q", agg.Op)
	}

	where, args, err := buildWhere(schema, filters, 1)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s", expr, schema.Table, where)

	var result float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&result); err != nil {
		return 0, fmt.Errorf("failed to aggregate %s rows: %w", entity, err)
	}
	return result, nil
}

// Insert creates one row and returns it fully serialized.
func (s *PostgresEntityStore) Insert(ctx context.Context, entity string, values map[string]interface{}) (domain.Row, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(values))
	for field := range values {
		if !schema.WritableField(field) {
			return nil, fmt.Errorf("field %q is not writable on %s", field, schema.Name)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	placeholders := make([]string, len(fields))
	args := make([]interface{}, len(fields))
	for i, field := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[field]
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		schema.Table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s row: %w", entity, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", schema.Table)
	}
	return out[0], nil
}

// Update applies values to every matching row and returns the updated rows.
func (s *PostgresEntityStore) Update(ctx context.Context, entity string, filters domain.Filters, values map[string]interface{}) ([]domain.Row, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(values))
	for field := range values {
		if !schema.WritableField(field) {
			return nil, fmt.Errorf("field %q is not writable on %s", field, schema.Name)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	assignments := make([]string, len(fields))
	args := make([]interface{}, 0, len(fields)+len(filters))
	for i, field := range fields {
		assignments[i] = fmt.Sprintf("%s = $%d", field, i+1)
		args = append(args, values[field])
	}

	where, whereArgs, err := buildWhere(schema, filters, len(args)+1)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf(
		"UPDATE %s SET %s%s RETURNING *",
		schema.Table,
		strings.Join(assignments, ", "),
		where,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s rows: %w", entity, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Delete removes every matching row and returns them as they were.
func (s *PostgresEntityStore) Delete(ctx context.Context, entity string, filters domain.Filters) ([]domain.Row, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(schema, filters, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s%s RETURNING *", schema.Table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s rows: %w", entity, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Restore re-inserts a snapshot row verbatim, id included. Column names come
// from earlier scans of the same table, but they are still checked against a
// strict identifier charset before interpolation.
func (s *PostgresEntityStore) Restore(ctx context.Context, entity string, row domain.Row) (domain.Row, error) {
	schema, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(row))
	for field := range row {
		if !validIdent(field) {
			return nil, fmt.Errorf("invalid column name %q", field)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	placeholders := make([]string, len(fields))
	args := make([]interface{}, len(fields))
	for i, field := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[field]
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		schema.Table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore %s row: %w", entity, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("restore into %s returned no row", schema.Table)
	}
	return out[0], nil
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// scanRows serializes a generic result set into Row maps. Byte slices are
// converted to strings so snapshots survive a JSON round trip unchanged.
func scanRows(rows *sql.Rows) ([]domain.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var out []domain.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(domain.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
