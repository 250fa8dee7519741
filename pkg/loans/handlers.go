package loans

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/auth"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/pkg/errors"
)

type handler struct {
	loanService *Service
}

// list returns the requesting customer's loan histories, newest first.
func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	histories, err := h.loanService.ListHistories(ctx, customer.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, histories))
}
