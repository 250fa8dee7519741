package books

import (
	"context"
	"database/sql"
	"net/url"
	"testing"
	"time"

	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/migrations"
	"github.com/libloan/libloan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.RegisterModel((*models.BookPrerequisite)(nil))

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createGenre(ctx context.Context, t *testing.T, db *bun.DB, title string) *models.Genre {
	t.Helper()

	genre := &models.Genre{Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err := db.NewInsert().
		Model(genre).
		On("CONFLICT (title) DO UPDATE SET title = EXCLUDED.title").
		Returning("*").
		Exec(ctx)
	require.NoError(t, err)
	return genre
}

func createTestBook(ctx context.Context, t *testing.T, svc *Service, db *bun.DB, title string) *models.Book {
	t.Helper()

	genre := createGenre(ctx, t, db, "Fiction")
	book := &models.Book{
		Title:   title,
		Author:  "Test Author",
		GenreID: genre.ID,
	}
	require.NoError(t, svc.CreateBook(ctx, book))
	return book
}

func TestCreateBook(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	book := createTestBook(ctx, t, svc, db, "Dune")

	assert.NotZero(t, book.ID)
	assert.Equal(t, models.BookStateNew, book.State)
	assert.False(t, book.CreatedAt.IsZero())
	assert.Equal(t, book.CreatedAt, book.UpdatedAt)
}

func TestAddPrerequisite(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	intro := createTestBook(ctx, t, svc, db, "Intro")
	advanced := createTestBook(ctx, t, svc, db, "Advanced")

	require.NoError(t, svc.AddPrerequisite(ctx, advanced.ID, intro.ID))
	// Adding the same edge again is a no-op.
	require.NoError(t, svc.AddPrerequisite(ctx, advanced.ID, intro.ID))

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &advanced.ID})
	require.NoError(t, err)
	require.Len(t, retrieved.Prerequisites, 1)
	assert.Equal(t, intro.ID, retrieved.Prerequisites[0].ID)
}

func TestRetrieveBook(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	book := createTestBook(ctx, t, svc, db, "Dune")

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Dune", retrieved.Title)
	require.NotNil(t, retrieved.Genre)
	assert.Equal(t, "Fiction", retrieved.Genre.Title)

	title := "Dune"
	retrieved, err = svc.RetrieveBook(ctx, RetrieveBookOptions{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, book.ID, retrieved.ID)

	missing := 9999
	_, err = svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &missing})
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
}

func TestListBooks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, title := range []string{"Dune", "Dune Messiah", "Children of Dune"} {
		createTestBook(ctx, t, svc, db, title)
	}

	books, p, err := svc.ListBooks(ctx, ListBooksOptions{
		Params:          url.Values{},
		DefaultPageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, books, 2)
	assert.Equal(t, 3, p.TotalCount())
	assert.Equal(t, 2, p.LastPage())
	require.NotNil(t, books[0].Genre)

	books, _, err = svc.ListBooks(ctx, ListBooksOptions{
		Params:          url.Values{"search": {"messiah"}},
		DefaultPageSize: 20,
	})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune Messiah", books[0].Title)
}
