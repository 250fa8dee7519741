package books

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/models"
	"github.com/libloan/libloan/pkg/pagination"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID    *int
	Title *string
}

type ListBooksOptions struct {
	Params          url.Values
	DefaultPageSize int
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	if book.State == "" {
		book.State = models.BookStateNew
	}

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

// AddPrerequisite records a prerequisite edge. Cycles aren't checked; a
// cyclic pair simply ends up mutually unloanable.
func (svc *Service) AddPrerequisite(ctx context.Context, bookID, prerequisiteID int) error {
	edge := &models.BookPrerequisite{
		BookID:         bookID,
		PrerequisiteID: prerequisiteID,
	}

	_, err := svc.db.
		NewInsert().
		Model(edge).
		On("CONFLICT (book_id, prerequisite_id) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("Genre").
		Relation("Prerequisites")

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.Title != nil {
		q = q.Where("b.title = ?", *opts.Title)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// ListBooks runs the query engine over the catalog with the Book capability
// table. The returned paginator carries the metadata for the response
// headers.
func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, *pagination.Paginator, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Genre")

	p := pagination.New(q, (*models.Book)(nil).PaginationCapabilities(), opts.Params, pagination.Options{
		DefaultPageSize: opts.DefaultPageSize,
		DefaultOrder:    "b.id ASC",
	})

	if err := p.Scan(ctx); err != nil {
		return nil, nil, err
	}

	return books, p, nil
}
