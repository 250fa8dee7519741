package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Loan history states. A row is created in new, moves to loaned when a loan
// succeeds and to give_back when the return succeeds. Rows are never deleted
// and never re-enter new.
const (
	LoanStateNew      = "new"
	LoanStateLoaned   = "loaned"
	LoanStateGiveBack = "give_back"
)

// BookLoanHistory records one customer's current and past relationship to a
// book. It's created lazily on the first loan or return attempt.
type BookLoanHistory struct {
	bun.BaseModel `bun:"table:book_loan_histories,alias:blh"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	BookID          int        `bun:",nullzero" json:"book_id"`
	Book            *Book      `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	CustomerID      int        `bun:",nullzero" json:"customer_id"`
	Customer        *Customer  `bun:"rel:belongs-to,join:customer_id=id" json:"-"`
	LoanRequestDate *time.Time `json:"loan_request_date"`
	BackDate        *time.Time `json:"back_date"`
	State           string     `bun:",nullzero" json:"state"`
}

// HoldsLoan reports whether the customer currently has the book checked out
// through this row.
func (h *BookLoanHistory) HoldsLoan() bool {
	return h.State == LoanStateLoaned
}
