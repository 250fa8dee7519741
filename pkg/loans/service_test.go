package loans

import (
	"context"
	"database/sql"
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

const testLoanPeriod = 14 * 24 * time.Hour

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

func createBook(ctx context.Context, t *testing.T, db *bun.DB, title string) *models.Book {
	t.Helper()

	genre := &models.Genre{Title: "Fiction", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err := db.NewInsert().
		Model(genre).
		On("CONFLICT (title) DO UPDATE SET title = EXCLUDED.title").
		Returning("*").
		Exec(ctx)
	require.NoError(t, err)

	book := &models.Book{
		Title:     title,
		Author:    "Test Author",
		GenreID:   genre.ID,
		State:     models.BookStateNew,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = db.NewInsert().Model(book).Returning("*").Exec(ctx)
	require.NoError(t, err)

	return book
}

func createCustomer(ctx context.Context, t *testing.T, db *bun.DB, email string) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		UUID:         email,
		Email:        email,
		FirstName:    "Test",
		LastName:     "Customer",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	_, err := db.NewInsert().Model(customer).Returning("*").Exec(ctx)
	require.NoError(t, err)

	return customer
}

func addPrerequisite(ctx context.Context, t *testing.T, db *bun.DB, bookID, prerequisiteID int) {
	t.Helper()

	_, err := db.NewInsert().
		Model(&models.BookPrerequisite{BookID: bookID, PrerequisiteID: prerequisiteID}).
		Exec(ctx)
	require.NoError(t, err)
}

func retrieveBook(ctx context.Context, t *testing.T, db *bun.DB, id int) *models.Book {
	t.Helper()

	book := &models.Book{}
	err := db.NewSelect().Model(book).Where("b.id = ?", id).Scan(ctx)
	require.NoError(t, err)
	return book
}

func retrieveHistory(ctx context.Context, t *testing.T, db *bun.DB, customerID, bookID int) *models.BookLoanHistory {
	t.Helper()

	history := &models.BookLoanHistory{}
	err := db.NewSelect().
		Model(history).
		Where("blh.customer_id = ?", customerID).
		Where("blh.book_id = ?", bookID).
		Scan(ctx)
	require.NoError(t, err)
	return history
}

func TestRequestLoan(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	before := time.Now()
	err := svc.RequestLoan(ctx, customer, book.ID)
	require.NoError(t, err)

	updated := retrieveBook(ctx, t, db, book.ID)
	assert.Equal(t, models.BookStateLoaned, updated.State)

	history := retrieveHistory(ctx, t, db, customer.ID, book.ID)
	assert.Equal(t, models.LoanStateLoaned, history.State)
	require.NotNil(t, history.LoanRequestDate)
	require.NotNil(t, history.BackDate)
	assert.WithinDuration(t, before.Add(testLoanPeriod), *history.BackDate, time.Minute)
}

func TestRequestLoanBookNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	customer := createCustomer(ctx, t, db, "paul@example.com")

	err := svc.RequestLoan(ctx, customer, 12345)
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
}

func TestRequestLoanTwiceBySameCustomer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	require.NoError(t, svc.RequestLoan(ctx, customer, book.ID))

	err := svc.RequestLoan(ctx, customer, book.ID)
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardAlreadyLoaned, violation.Guard)
}

func TestRequestLoanBookHeldByOtherCustomer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	first := createCustomer(ctx, t, db, "paul@example.com")
	second := createCustomer(ctx, t, db, "leto@example.com")

	require.NoError(t, svc.RequestLoan(ctx, first, book.ID))

	err := svc.RequestLoan(ctx, second, book.ID)
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardBookUnderLoan, violation.Guard)
	assert.Equal(t, "book state is loaned and current user loan history state is new and user prerequisite is true", err.Error())
}

func TestRequestLoanPrerequisites(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	intro := createBook(ctx, t, db, "Intro to Potions")
	advanced := createBook(ctx, t, db, "Advanced Potions")
	addPrerequisite(ctx, t, db, advanced.ID, intro.ID)

	customer := createCustomer(ctx, t, db, "hermione@example.com")

	err := svc.RequestLoan(ctx, customer, advanced.ID)
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardPrerequisites, violation.Guard)
	assert.False(t, violation.PrerequisiteMet)

	// Holding the prerequisite isn't enough; it has to be given back.
	require.NoError(t, svc.RequestLoan(ctx, customer, intro.ID))
	err = svc.RequestLoan(ctx, customer, advanced.ID)
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardPrerequisites, violation.Guard)

	require.NoError(t, svc.RequestReturn(ctx, customer, intro.ID))
	require.NoError(t, svc.RequestLoan(ctx, customer, advanced.ID))

	updated := retrieveBook(ctx, t, db, advanced.ID)
	assert.Equal(t, models.BookStateLoaned, updated.State)
}

func TestRequestLoanAfterGiveBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	require.NoError(t, svc.RequestLoan(ctx, customer, book.ID))
	require.NoError(t, svc.RequestReturn(ctx, customer, book.ID))

	// The pair's history is terminal; another customer can still loan the
	// released book.
	err := svc.RequestLoan(ctx, customer, book.ID)
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardHistoryNotNew, violation.Guard)

	other := createCustomer(ctx, t, db, "leto@example.com")
	require.NoError(t, svc.RequestLoan(ctx, other, book.ID))
}

func TestRequestReturn(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	require.NoError(t, svc.RequestLoan(ctx, customer, book.ID))
	require.NoError(t, svc.RequestReturn(ctx, customer, book.ID))

	updated := retrieveBook(ctx, t, db, book.ID)
	assert.Equal(t, models.BookStateReleased, updated.State)

	history := retrieveHistory(ctx, t, db, customer.ID, book.ID)
	assert.Equal(t, models.LoanStateGiveBack, history.State)
}

func TestRequestReturnWithoutLoan(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	err := svc.RequestReturn(ctx, customer, book.ID)
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardHistoryNotLoaned, violation.Guard)
}

func TestRequestReturnByNonHolder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	holder := createCustomer(ctx, t, db, "paul@example.com")
	other := createCustomer(ctx, t, db, "leto@example.com")

	require.NoError(t, svc.RequestLoan(ctx, holder, book.ID))

	err := svc.RequestReturn(ctx, other, book.ID)
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, GuardHistoryNotLoaned, violation.Guard)

	// The holder's loan is untouched.
	updated := retrieveBook(ctx, t, db, book.ID)
	assert.Equal(t, models.BookStateLoaned, updated.State)
}

type fakeResult struct {
	rows int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

func TestNoRowsAffected(t *testing.T) {
	t.Parallel()

	stale, err := noRowsAffected(fakeResult{rows: 1})
	require.NoError(t, err)
	assert.False(t, stale)

	// Zero rows means a competing transition committed first; the caller
	// builds a violation and the transaction rolls back.
	stale, err = noRowsAffected(fakeResult{rows: 0})
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestStaleViolationReportsCommittedStates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	holder := createCustomer(ctx, t, db, "paul@example.com")
	require.NoError(t, svc.RequestLoan(ctx, holder, book.ID))

	// Hand staleViolation rows loaded before the loan committed, as a losing
	// request would hold them.
	staleBook := &models.Book{ID: book.ID, State: models.BookStateNew}
	history := retrieveHistory(ctx, t, db, holder.ID, book.ID)
	staleHistory := &models.BookLoanHistory{ID: history.ID, State: models.LoanStateNew}

	err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return svc.staleViolation(ctx, tx, GuardAlreadyLoaned, staleBook, staleHistory, true)
	})
	violation := &GuardViolation{}
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, models.BookStateLoaned, violation.BookState)
	assert.Equal(t, models.LoanStateLoaned, violation.HistoryState)

	// Without the history refresh the caller's own pending write is ignored
	// and the pre-transaction state is reported.
	err = db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return svc.staleViolation(ctx, tx, GuardBookUnderLoan, staleBook, staleHistory, false)
	})
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, models.BookStateLoaned, violation.BookState)
	assert.Equal(t, models.LoanStateNew, violation.HistoryState)
}

func TestHoldsActiveLoan(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	book := createBook(ctx, t, db, "Dune")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	holds, err := svc.HoldsActiveLoan(ctx, customer.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, holds)

	require.NoError(t, svc.RequestLoan(ctx, customer, book.ID))

	holds, err = svc.HoldsActiveLoan(ctx, customer.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, holds)

	require.NoError(t, svc.RequestReturn(ctx, customer, book.ID))

	holds, err = svc.HoldsActiveLoan(ctx, customer.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, holds)
}

func TestListHistories(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, testLoanPeriod)
	ctx := context.Background()

	first := createBook(ctx, t, db, "Dune")
	second := createBook(ctx, t, db, "Dune Messiah")
	customer := createCustomer(ctx, t, db, "paul@example.com")

	require.NoError(t, svc.RequestLoan(ctx, customer, first.ID))
	require.NoError(t, svc.RequestReturn(ctx, customer, first.ID))
	require.NoError(t, svc.RequestLoan(ctx, customer, second.ID))

	histories, err := svc.ListHistories(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, histories, 2)
	require.NotNil(t, histories[0].Book)
	require.NotNil(t, histories[1].Book)

	states := map[int]string{}
	for _, h := range histories {
		states[h.BookID] = h.State
	}
	assert.Equal(t, models.LoanStateGiveBack, states[first.ID])
	assert.Equal(t, models.LoanStateLoaned, states[second.ID])
}
