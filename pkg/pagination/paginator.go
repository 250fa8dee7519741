// Package pagination is a generic filter/sort/search/paginate engine over bun
// select queries. Entity types opt in by declaring a capability table; the
// engine maps the request's query parameters onto predicates, order-by
// clauses, and a page slice, and exposes the metadata the HTTP layer surfaces
// as response headers.
package pagination

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/libloan/libloan/pkg/persian"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Operator prefixes recognized on filter parameters, in match order.
var operators = []struct {
	prefix string
	op     string
}{
	{"filter__", "contains"},
	{"exact__", "="},
	{"lt__", "<"},
	{"lte__", "<="},
	{"gt__", ">"},
	{"gte__", ">="},
}

type Options struct {
	DefaultPageSize int
	// DefaultOrder is a trailing order-by expression (e.g. "b.id ASC") that
	// keeps page slices deterministic when the requested sort leaves ties.
	DefaultOrder string
	// Normalizer is applied to every text value before it's compared.
	// Defaults to persian.Normalize; inject strings.Clone-style identity to
	// opt out for non-Persian deployments.
	Normalizer func(string) string
}

// Paginator applies a request's query parameters to a base select query.
// Unknown filter and sort keys are silently ignored; malformed numeric values
// fall back to defaults rather than erroring.
type Paginator struct {
	query     *bun.SelectQuery
	caps      Capabilities
	params    url.Values
	normalize func(string) string

	page       int
	pageSize   int
	totalCount int
	pageCount  int
}

func New(q *bun.SelectQuery, caps Capabilities, params url.Values, opts Options) *Paginator {
	normalize := opts.Normalizer
	if normalize == nil {
		normalize = persian.Normalize
	}

	page, err := strconv.Atoi(params.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize := opts.DefaultPageSize
	if raw := params.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			pageSize = n
		}
	}

	p := &Paginator{
		query:     q,
		caps:      caps,
		params:    params,
		normalize: normalize,
		page:      page,
		pageSize:  pageSize,
	}

	p.applyFilters()
	p.applySearch()
	p.applySort()

	if opts.DefaultOrder != "" {
		p.query = p.query.OrderExpr("?", bun.Safe(opts.DefaultOrder))
	}

	return p
}

func (p *Paginator) applyFilters() {
	for key, values := range p.params {
		if len(values) == 0 {
			continue
		}
		raw := values[0]

		// A declared field whose name appears verbatim and that carries a
		// custom builder handles its own filtering.
		if f, ok := lookupField(p.caps.Filterable, key); ok {
			if f.Apply != nil {
				p.query = f.Apply(p.query, raw)
			}
			continue
		}

		for _, operator := range operators {
			if !strings.HasPrefix(key, operator.prefix) {
				continue
			}
			f, ok := lookupField(p.caps.Filterable, strings.TrimPrefix(key, operator.prefix))
			if !ok {
				break
			}
			p.applyOperator(f, operator.op, raw)
			break
		}
	}
}

func (p *Paginator) applyOperator(f Field, op, raw string) {
	if raw == "null" {
		p.query = p.query.Where("? IS NULL", bun.Safe(f.Column))
		return
	}

	value := f.coerce(raw, p.normalize)
	switch op {
	case "contains":
		p.query = p.query.Where("LOWER(?) LIKE LOWER(?)", bun.Safe(f.Column), fmt.Sprintf("%%%v%%", value))
	default:
		p.query = p.query.Where(fmt.Sprintf("? %s ?", op), bun.Safe(f.Column), value)
	}
}

func (p *Paginator) applySearch() {
	text := p.params.Get("search")
	if text == "" || len(p.caps.Searchable) == 0 {
		return
	}

	p.query = p.query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, f := range p.caps.Searchable {
			value := f.coerce(text, p.normalize)
			q = q.WhereOr("LOWER(?) LIKE LOWER(?)", bun.Safe(f.Column), fmt.Sprintf("%%%v%%", value))
		}
		return q
	})
}

func (p *Paginator) applySort() {
	raw := p.params.Get("sort")
	if raw == "" {
		return
	}

	for _, token := range strings.Split(raw, ",") {
		direction := "ASC"
		name := token
		switch {
		case strings.HasPrefix(token, "-"):
			direction = "DESC"
			name = token[1:]
		case strings.HasPrefix(token, "+"):
			name = token[1:]
		}

		f, ok := lookupField(p.caps.Sortable, name)
		if !ok {
			continue
		}
		p.query = p.query.OrderExpr(fmt.Sprintf("? %s", direction), bun.Safe(f.Column))
	}
}

// Scan executes the filtered query, counting the total match set before
// slicing out the requested page. A page size of zero or below disables
// slicing and returns everything.
func (p *Paginator) Scan(ctx context.Context, dest ...interface{}) error {
	q := p.query
	if p.pageSize > 0 {
		q = q.Limit(p.pageSize).Offset((p.page - 1) * p.pageSize)
	}

	total, err := q.ScanAndCount(ctx, dest...)
	if err != nil {
		return errors.WithStack(err)
	}

	p.totalCount = total
	if p.pageSize > 0 {
		p.pageCount = int(math.Ceil(float64(total) / float64(p.pageSize)))
	} else {
		p.pageCount = 1
	}

	return nil
}

func (p *Paginator) TotalCount() int { return p.totalCount }
func (p *Paginator) Page() int       { return p.page }
func (p *Paginator) PageSize() int   { return p.pageSize }

// LastPage is never below 1, so an empty result set still reports one page.
func (p *Paginator) LastPage() int {
	if p.pageCount < 1 {
		return 1
	}
	return p.pageCount
}

func (p *Paginator) HasNextPage() bool { return p.page < p.LastPage() }
func (p *Paginator) HasPrevPage() bool { return p.page > 1 }

// SetHeaders writes the pagination metadata and hypermedia links onto the
// response headers. Must be called after Scan.
func (p *Paginator) SetHeaders(req *http.Request, h http.Header) {
	h.Set("X-Pagination-Total-Count", strconv.Itoa(p.totalCount))
	h.Set("X-Pagination-Page-Count", strconv.Itoa(p.LastPage()))
	h.Set("X-Pagination-Current-Page", strconv.Itoa(p.page))
	h.Set("X-Pagination-Per-Page", strconv.Itoa(p.pageSize))
	h.Set("X-Pagination-Sortable-Fields", strings.Join(fieldNames(p.caps.Sortable), ","))
	h.Set("X-Pagination-Filterable-Fields", strings.Join(fieldNames(p.caps.Filterable), ","))
	h.Set("X-Pagination-Searchable-Fields", strings.Join(fieldNames(p.caps.Searchable), ","))
	h.Set("Link", p.links(req))
}

func (p *Paginator) links(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	link := func(page int, rel string) string {
		query := url.Values{}
		for k, vs := range p.params {
			query[k] = vs
		}
		query.Set("page", strconv.Itoa(page))
		return fmt.Sprintf("<%s?%s>; rel=%s", base, query.Encode(), rel)
	}

	links := []string{link(1, "first")}
	if p.HasPrevPage() {
		links = append(links, link(p.page-1, "prev"))
	}
	links = append(links, link(p.page, "self"))
	if p.HasNextPage() {
		links = append(links, link(p.page+1, "next"))
	}
	links = append(links, link(p.LastPage(), "last"))

	return strings.Join(links, ", ")
}
