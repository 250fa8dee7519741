package models

import (
	"time"

	"github.com/libloan/libloan/pkg/pagination"
	"github.com/uptrace/bun"
)

// Book availability states. A book moves to loaned only from new or released,
// and to released only from loaned.
const (
	BookStateNew      = "new"
	BookStateLoaned   = "loaned"
	BookStateReleased = "released"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `bun:",nullzero" json:"title"`
	Author    string    `bun:",nullzero" json:"author"`
	GenreID   int       `bun:",nullzero" json:"genre_id"`
	Genre     *Genre    `bun:"rel:belongs-to,join:genre_id=id" json:"genre,omitempty"`
	State     string    `bun:",nullzero" json:"state"`

	// Prerequisites form a self-referential graph. Cycles are possible; the
	// system does not prevent them (a cycle just leaves its members
	// permanently unloanable).
	Prerequisites []*Book `bun:"m2m:book_prerequisites,join:Book=Prerequisite" json:"prerequisites,omitempty"`
}

// BookPrerequisite is the join row of the prerequisite graph. The book owns
// its outgoing edges.
type BookPrerequisite struct {
	bun.BaseModel `bun:"table:book_prerequisites,alias:bp"`

	BookID         int   `bun:",pk" json:"book_id"`
	Book           *Book `bun:"rel:belongs-to,join:book_id=id" json:"-"`
	PrerequisiteID int   `bun:",pk" json:"prerequisite_id"`
	Prerequisite   *Book `bun:"rel:belongs-to,join:prerequisite_id=id" json:"-"`
}

// IsUnderLoan reports whether the book is currently checked out.
func (b *Book) IsUnderLoan() bool {
	return b.State == BookStateLoaned
}

// CanLoan is the book-level loan guard.
func (b *Book) CanLoan() bool {
	return !b.IsUnderLoan()
}

// CanReturn is the book-level return guard: the book must currently show a
// checkout, not an earlier release.
func (b *Book) CanReturn() bool {
	return b.State != BookStateReleased
}

// PrerequisiteIDs returns the ids of the book's prerequisite edges.
func (b *Book) PrerequisiteIDs() []int {
	ids := make([]int, 0, len(b.Prerequisites))
	for _, p := range b.Prerequisites {
		ids = append(ids, p.ID)
	}
	return ids
}

// PaginationCapabilities declares the fields the query engine may search,
// sort, and filter on. Column expressions assume the Genre relation is
// joined.
func (*Book) PaginationCapabilities() pagination.Capabilities {
	return pagination.Capabilities{
		Searchable: []pagination.Field{
			{Name: "title", Column: "b.title"},
			{Name: "author", Column: "b.author"},
			{Name: "genre.title", Column: "genre.title"},
		},
		Sortable: []pagination.Field{
			{Name: "id", Column: "b.id", Kind: pagination.Int},
			{Name: "created_at", Column: "b.created_at", Kind: pagination.Time},
			{Name: "updated_at", Column: "b.updated_at", Kind: pagination.Time},
		},
		Filterable: []pagination.Field{
			{Name: "genre.title", Column: "genre.title"},
			{Name: "author", Column: "b.author"},
			{Name: "state", Column: "b.state"},
		},
	}
}
