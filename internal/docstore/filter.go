package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Op int

const (
	OpEqual Op = iota
	OpArrayContains
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpArrayContains:
		return "array-contains"
	default:
		return "unknown"
	}
}

// Filter is one condition on a top-level field. Filters passed to Query are
// AND-ed.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Equal(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

var errEmptyField = errors.New("filter field is empty")

// containment renders the filter as a JSONB document that a matching body
// must contain (data @> doc).
func (f Filter) containment() (string, error) {
	if strings.TrimSpace(f.Field) == "" {
		return "", errEmptyField
	}

	var doc map[string]any
	switch f.Op {
	case OpEqual:
		doc = map[string]any{f.Field: f.Value}
	case OpArrayContains:
		doc = map[string]any{f.Field: []any{f.Value}}
	default:
		return "", fmt.Errorf("unsupported filter operator %d on %q", f.Op, f.Field)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode filter on %q: %w", f.Field, err)
	}
	return string(b), nil
}

// appendFilters adds one containment clause per filter to where, numbering
// placeholders after the args already present.
func appendFilters(where []string, args []any, filters []Filter) ([]string, []any, error) {
	for _, f := range filters {
		doc, err := f.containment()
		if err != nil {
			return nil, nil, err
		}
		args = append(args, doc)
		where = append(where, fmt.Sprintf("data @> $%d::jsonb", len(args)))
	}
	return where, args, nil
}

func collectionWhere(collection string, filters []Filter) (string, []any, error) {
	where, args, err := appendFilters([]string{"collection = $1"}, []any{collection}, filters)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(where, " AND "), args, nil
}

// buildQuery returns the SELECT statement and its arguments for a collection
// query. A nil page returns every match, oldest first.
func buildQuery(collection string, filters []Filter, page *Page) (string, []any, error) {
	where, args, err := collectionWhere(collection, filters)
	if err != nil {
		return "", nil, err
	}

	order := "ASC"
	var window string
	if page != nil {
		if page.NewestFirst {
			order = "DESC"
		}
		if page.Limit > 0 {
			args = append(args, page.Limit)
			window += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if page.Offset > 0 {
			args = append(args, page.Offset)
			window += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	q := fmt.Sprintf(`
		SELECT id, collection, data, created_at, updated_at
		FROM documents
		WHERE %s
		ORDER BY created_at %s, id %s%s
	`, where, order, order, window)

	return q, args, nil
}

func buildCount(collection string, filters []Filter) (string, []any, error) {
	where, args, err := collectionWhere(collection, filters)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM documents WHERE " + where, args, nil
}

// buildAverage returns a statement selecting the match count followed by one
// mean per field. Values that are not JSON numbers are skipped.
func buildAverage(collection string, fields []string, filters []Filter) (string, []any, error) {
	where, args, err := collectionWhere(collection, filters)
	if err != nil {
		return "", nil, err
	}

	cols := []string{"COUNT(*)"}
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			return "", nil, errEmptyField
		}
		args = append(args, field)
		n := len(args)
		cols = append(cols, fmt.Sprintf(
			"AVG(CASE WHEN jsonb_typeof(data -> $%d::text) = 'number' THEN (data ->> $%d::text)::float8 END)", n, n))
	}

	q := fmt.Sprintf("SELECT %s FROM documents WHERE %s", strings.Join(cols, ", "), where)
	return q, args, nil
}
