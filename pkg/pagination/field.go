package pagination

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Kind is the semantic type of a declared field. It drives how raw query
// parameter values are coerced before they're used in a predicate.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	Time
)

// Field declares one pagination capability of an entity. Name is the public
// parameter name (dot-path addressable into related entities, e.g.
// "genre.title"), Column the SQL expression it maps onto. Apply, when set, is
// a custom filter builder that takes precedence over the generic operator
// handling for this field.
type Field struct {
	Name   string
	Column string
	Kind   Kind
	Apply  func(q *bun.SelectQuery, raw string) *bun.SelectQuery
}

// Capabilities is the capability table an entity type declares to opt into
// the query engine. Order is preserved in the discovery headers.
type Capabilities struct {
	Searchable []Field
	Sortable   []Field
	Filterable []Field
}

// Paginatable is implemented by entity types that declare their own
// capability table.
type Paginatable interface {
	PaginationCapabilities() Capabilities
}

func fieldNames(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func lookupField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// coerce converts the raw parameter value according to the field's kind.
// Coercion is deliberately lenient: unparsable numbers become zero values
// rather than errors. The literal "null" is handled by the caller as an
// absence test before coercion.
func (f Field) coerce(raw string, normalize func(string) string) interface{} {
	switch f.Kind {
	case Bool:
		if raw == "false" || raw == "0" {
			return false
		}
		return true
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return int64(0)
		}
		return n
	case Float:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return float64(0)
		}
		return n
	case Time:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return normalize(raw)
	}
}
