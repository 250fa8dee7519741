package customers

import (
	"context"
	"crypto/rand"
	"database/sql"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type RetrieveCustomerOptions struct {
	ID                 *int
	UUID               *string
	Email              *string
	ResetPasswordToken *string
}

// Service manages customer identities: registration, credential checks, and
// the password reset token flow.
type Service struct {
	db             *bun.DB
	bcryptCost     int
	resetTokenSize int
}

func NewService(db *bun.DB, bcryptCost, resetTokenSize int) *Service {
	return &Service{db: db, bcryptCost: bcryptCost, resetTokenSize: resetTokenSize}
}

// Register creates a customer with a hashed password and a fresh public UUID.
func (svc *Service) Register(ctx context.Context, email, firstName, lastName, password string) (*models.Customer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), svc.bcryptCost)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	customer := &models.Customer{
		UUID:         uuid.New().String(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = svc.db.
		NewInsert().
		Model(customer).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return customer, nil
}

func (svc *Service) RetrieveCustomer(ctx context.Context, opts RetrieveCustomerOptions) (*models.Customer, error) {
	customer := &models.Customer{}

	q := svc.db.
		NewSelect().
		Model(customer)

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}
	if opts.UUID != nil {
		q = q.Where("c.uuid = ?", *opts.UUID)
	}
	if opts.Email != nil {
		q = q.Where("c.email = ? COLLATE NOCASE", *opts.Email)
	}
	if opts.ResetPasswordToken != nil {
		q = q.Where("c.reset_password_token = ?", *opts.ResetPasswordToken)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Customer")
		}
		return nil, errors.WithStack(err)
	}

	return customer, nil
}

// Authenticate validates credentials and returns the customer if valid.
func (svc *Service) Authenticate(ctx context.Context, email, password string) (*models.Customer, error) {
	customer, err := svc.RetrieveCustomer(ctx, RetrieveCustomerOptions{Email: &email})
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid email or password")
	}

	err = bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password))
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid email or password")
	}

	return customer, nil
}

// GenerateResetPasswordToken stores and returns a new single-use reset token
// for the customer. Delivery of the token is the mailer's concern, not ours.
func (svc *Service) GenerateResetPasswordToken(ctx context.Context, customer *models.Customer) (string, error) {
	token, err := randomToken(svc.resetTokenSize)
	if err != nil {
		return "", err
	}

	customer.ResetPasswordToken = &token
	customer.UpdatedAt = time.Now()

	_, err = svc.db.
		NewUpdate().
		Model(customer).
		Column("reset_password_token", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return token, nil
}

// ResetPassword consumes a reset token and sets the new password.
func (svc *Service) ResetPassword(ctx context.Context, token, password string) (*models.Customer, error) {
	customer, err := svc.RetrieveCustomer(ctx, RetrieveCustomerOptions{ResetPasswordToken: &token})
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), svc.bcryptCost)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	customer.PasswordHash = string(hash)
	customer.ResetPasswordToken = nil
	customer.UpdatedAt = time.Now()

	_, err = svc.db.
		NewUpdate().
		Model(customer).
		Column("password_hash", "reset_password_token", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return customer, nil
}

func randomToken(size int) (string, error) {
	token := make([]byte, size)
	for i := range token {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(resetTokenAlphabet))))
		if err != nil {
			return "", errors.WithStack(err)
		}
		token[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(token), nil
}
