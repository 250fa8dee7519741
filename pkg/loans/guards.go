// Package loans implements the loan lifecycle: two coupled state machines
// (book availability and the per-customer loan history) that must agree
// before a transition commits.
package loans

import (
	"fmt"

	"github.com/libloan/libloan/pkg/models"
)

// Guard names reported on violations.
const (
	GuardHistoryNotNew    = "history_not_new"
	GuardAlreadyLoaned    = "already_loaned"
	GuardPrerequisites    = "prerequisites_not_returned"
	GuardBookUnderLoan    = "book_under_loan"
	GuardHistoryNotLoaned = "history_not_loaned"
	GuardBookReleased     = "book_already_released"
)

// GuardViolation describes why a transition is not allowed: the guard that
// failed plus the current state of both machines, enough for the caller to
// render a diagnostic without re-deriving anything.
type GuardViolation struct {
	Guard           string
	BookState       string
	HistoryState    string
	PrerequisiteMet bool
}

func (v *GuardViolation) Error() string {
	return fmt.Sprintf(
		"book state is %s and current user loan history state is %s and user prerequisite is %t",
		v.BookState, v.HistoryState, v.PrerequisiteMet,
	)
}

// prerequisitesMet checks set equality between the book's prerequisite ids
// and the ids the customer has returned. Extra returned books are irrelevant;
// any missing member fails.
func prerequisitesMet(prerequisiteIDs, returnedIDs []int) bool {
	if len(prerequisiteIDs) == 0 {
		return true
	}

	returned := make(map[int]struct{}, len(returnedIDs))
	for _, id := range returnedIDs {
		returned[id] = struct{}{}
	}

	for _, id := range prerequisiteIDs {
		if _, ok := returned[id]; !ok {
			return false
		}
	}
	return true
}

// CanLoan is the pure loan probe: it evaluates every loan guard over the
// loaded state and returns nil when the transition may proceed.
// returnedPrerequisiteIDs is the set of the book's prerequisites this
// customer has already given back.
func CanLoan(book *models.Book, history *models.BookLoanHistory, returnedPrerequisiteIDs []int) *GuardViolation {
	met := prerequisitesMet(book.PrerequisiteIDs(), returnedPrerequisiteIDs)

	violation := func(guard string) *GuardViolation {
		return &GuardViolation{
			Guard:           guard,
			BookState:       book.State,
			HistoryState:    history.State,
			PrerequisiteMet: met,
		}
	}

	if history.HoldsLoan() {
		return violation(GuardAlreadyLoaned)
	}
	// A loan only ever starts from a fresh history row; give_back is terminal
	// for the (customer, book) pair.
	if history.State != models.LoanStateNew {
		return violation(GuardHistoryNotNew)
	}
	if !met {
		return violation(GuardPrerequisites)
	}
	if !book.CanLoan() {
		return violation(GuardBookUnderLoan)
	}
	return nil
}

// CanReturn is the pure return probe.
func CanReturn(book *models.Book, history *models.BookLoanHistory) *GuardViolation {
	violation := func(guard string) *GuardViolation {
		return &GuardViolation{
			Guard:           guard,
			BookState:       book.State,
			HistoryState:    history.State,
			PrerequisiteMet: true,
		}
	}

	if !history.HoldsLoan() {
		return violation(GuardHistoryNotLoaned)
	}
	if !book.CanReturn() {
		return violation(GuardBookReleased)
	}
	return nil
}
