package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID                 int       `bun:",pk,nullzero" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	UUID               string    `bun:",nullzero" json:"uuid"`
	Email              string    `bun:",nullzero" json:"email"`
	FirstName          string    `bun:",nullzero" json:"first_name"`
	LastName           string    `bun:",nullzero" json:"last_name"`
	PasswordHash       string    `json:"-"` // Never expose password hash
	ResetPasswordToken *string   `json:"-"`

	LoanHistories []*BookLoanHistory `bun:"rel:has-many,join:id=customer_id" json:"-"`
}

func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
