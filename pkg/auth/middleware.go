package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/customers"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/models"
)

// Context keys for the authenticated customer.
const (
	ContextKeyCustomerID = "customer_id"
	ContextKeyCustomer   = "customer"
)

// CookieName is the fallback token location for browser clients that don't
// set an Authorization header.
const CookieName = "libloan_token"

// Middleware resolves bearer tokens to customers. Everything behind it can
// trust the identity in the echo context as given.
type Middleware struct {
	authService     *Service
	customerService *customers.Service
}

func NewMiddleware(authService *Service, customerService *customers.Service) *Middleware {
	return &Middleware{
		authService:     authService,
		customerService: customerService,
	}
}

// Authenticate extracts and validates the JWT from the Authorization header.
// If valid, it verifies the customer still exists and adds them to the
// context. If not authenticated, it returns 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := bearerToken(c)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		customer, err := m.customerService.RetrieveCustomer(ctx, customers.RetrieveCustomerOptions{
			ID: &claims.CustomerID,
		})
		if err != nil {
			return errcodes.Unauthorized("Customer not found")
		}

		c.Set(ContextKeyCustomerID, customer.ID)
		c.Set(ContextKeyCustomer, customer)

		return next(c)
	}
}

// bearerToken prefers the Authorization header and falls back to the cookie.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// CustomerFromContext retrieves the authenticated customer from the echo
// context.
func CustomerFromContext(c echo.Context) (*models.Customer, bool) {
	customer, ok := c.Get(ContextKeyCustomer).(*models.Customer)
	return customer, ok
}
