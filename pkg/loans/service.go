package loans

import (
	"context"
	"database/sql"
	"time"

	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service orchestrates loan and return requests: it loads state, evaluates
// the guard probes, and commits both halves of a transition as one
// transaction. The in-transaction updates are conditional on the states the
// guards saw, so two concurrent requests for the same book can't both commit.
type Service struct {
	db         *bun.DB
	loanPeriod time.Duration
}

func NewService(db *bun.DB, loanPeriod time.Duration) *Service {
	return &Service{db: db, loanPeriod: loanPeriod}
}

// RequestLoan checks the book out to the customer. It lazily creates the
// (customer, book) history row, probes the loan guards, and on success moves
// the history to loaned and the book to loaned with a 14-day-style due date.
func (svc *Service) RequestLoan(ctx context.Context, customer *models.Customer, bookID int) error {
	book, history, err := svc.loadPair(ctx, customer, bookID)
	if err != nil {
		return err
	}

	returnedIDs, err := svc.returnedPrerequisiteIDs(ctx, customer.ID, book)
	if err != nil {
		return err
	}

	if v := CanLoan(book, history, returnedIDs); v != nil {
		return v
	}

	now := time.Now()
	backDate := now.Add(svc.loanPeriod)

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.BookLoanHistory)(nil)).
			Set("state = ?", models.LoanStateLoaned).
			Set("loan_request_date = ?", now).
			Set("back_date = ?", backDate).
			Set("updated_at = ?", now).
			Where("id = ?", history.ID).
			Where("state = ?", models.LoanStateNew).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		stale, err := noRowsAffected(res)
		if err != nil {
			return err
		}
		if stale {
			return svc.staleViolation(ctx, tx, GuardAlreadyLoaned, book, history, true)
		}

		res, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("state = ?", models.BookStateLoaned).
			Set("updated_at = ?", now).
			Where("id = ?", book.ID).
			Where("state != ?", models.BookStateLoaned).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		stale, err = noRowsAffected(res)
		if err != nil {
			return err
		}
		if stale {
			return svc.staleViolation(ctx, tx, GuardBookUnderLoan, book, history, false)
		}
		return nil
	})
	return err
}

// RequestReturn gives the book back. Same shape as RequestLoan with the
// return guards.
func (svc *Service) RequestReturn(ctx context.Context, customer *models.Customer, bookID int) error {
	book, history, err := svc.loadPair(ctx, customer, bookID)
	if err != nil {
		return err
	}

	if v := CanReturn(book, history); v != nil {
		return v
	}

	now := time.Now()

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.BookLoanHistory)(nil)).
			Set("state = ?", models.LoanStateGiveBack).
			Set("updated_at = ?", now).
			Where("id = ?", history.ID).
			Where("state = ?", models.LoanStateLoaned).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		stale, err := noRowsAffected(res)
		if err != nil {
			return err
		}
		if stale {
			return svc.staleViolation(ctx, tx, GuardHistoryNotLoaned, book, history, true)
		}

		res, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("state = ?", models.BookStateReleased).
			Set("updated_at = ?", now).
			Where("id = ?", book.ID).
			Where("state = ?", models.BookStateLoaned).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		stale, err = noRowsAffected(res)
		if err != nil {
			return err
		}
		if stale {
			return svc.staleViolation(ctx, tx, GuardBookReleased, book, history, false)
		}
		return nil
	})
	return err
}

// HoldsActiveLoan reports whether the customer currently has the book checked
// out. The books detail endpoint scopes visibility with this.
func (svc *Service) HoldsActiveLoan(ctx context.Context, customerID, bookID int) (bool, error) {
	exists, err := svc.db.NewSelect().
		Model((*models.BookLoanHistory)(nil)).
		Where("blh.customer_id = ?", customerID).
		Where("blh.book_id = ?", bookID).
		Where("blh.state = ?", models.LoanStateLoaned).
		Exists(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return exists, nil
}

// ListHistories returns the customer's loan histories, newest first.
func (svc *Service) ListHistories(ctx context.Context, customerID int) ([]*models.BookLoanHistory, error) {
	histories := []*models.BookLoanHistory{}
	err := svc.db.NewSelect().
		Model(&histories).
		Relation("Book").
		Where("blh.customer_id = ?", customerID).
		Order("blh.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return histories, nil
}

// loadPair loads the book (with its prerequisite edges) and lazily creates
// the (customer, book) history row as one upsert-then-read step.
func (svc *Service) loadPair(ctx context.Context, customer *models.Customer, bookID int) (*models.Book, *models.BookLoanHistory, error) {
	book := &models.Book{}
	err := svc.db.NewSelect().
		Model(book).
		Relation("Prerequisites").
		Where("b.id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errcodes.NotFound("Book")
		}
		return nil, nil, errors.WithStack(err)
	}

	now := time.Now()
	history := &models.BookLoanHistory{
		BookID:     book.ID,
		CustomerID: customer.ID,
		State:      models.LoanStateNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = svc.db.NewInsert().
		Model(history).
		On("CONFLICT (book_id, customer_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	// Read back whichever row won: the fresh insert or a pre-existing one.
	history = &models.BookLoanHistory{}
	err = svc.db.NewSelect().
		Model(history).
		Where("blh.book_id = ?", book.ID).
		Where("blh.customer_id = ?", customer.ID).
		Scan(ctx)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	return book, history, nil
}

// returnedPrerequisiteIDs returns the ids among the book's prerequisites that
// the customer has loaned and given back.
func (svc *Service) returnedPrerequisiteIDs(ctx context.Context, customerID int, book *models.Book) ([]int, error) {
	prerequisiteIDs := book.PrerequisiteIDs()
	if len(prerequisiteIDs) == 0 {
		return nil, nil
	}

	ids := []int{}
	err := svc.db.NewSelect().
		Model((*models.BookLoanHistory)(nil)).
		Column("blh.book_id").
		Where("blh.customer_id = ?", customerID).
		Where("blh.book_id IN (?)", bun.In(prerequisiteIDs)).
		Where("blh.state = ?", models.LoanStateGiveBack).
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ids, nil
}

// noRowsAffected reports whether a conditional update matched nothing. That
// is the transactional backstop against the check-then-act race: a competing
// request that committed first makes our update match zero rows.
func noRowsAffected(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return affected == 0, nil
}

// staleViolation rebuilds a guard violation after a conditional update
// matched no rows, re-reading the states the competing transaction left
// behind so the diagnostic reports them rather than this request's targets.
// refreshHistory is false once this transaction has already written the
// history row, since that write rolls back with the violation.
func (svc *Service) staleViolation(ctx context.Context, tx bun.Tx, guard string, book *models.Book, history *models.BookLoanHistory, refreshHistory bool) error {
	bookState := book.State
	err := tx.NewSelect().
		Model((*models.Book)(nil)).
		Column("b.state").
		Where("b.id = ?", book.ID).
		Scan(ctx, &bookState)
	if err != nil {
		return errors.WithStack(err)
	}

	historyState := history.State
	if refreshHistory {
		err = tx.NewSelect().
			Model((*models.BookLoanHistory)(nil)).
			Column("blh.state").
			Where("blh.id = ?", history.ID).
			Scan(ctx, &historyState)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return &GuardViolation{
		Guard:           guard,
		BookState:       bookState,
		HistoryState:    historyState,
		PrerequisiteMet: true,
	}
}
