package books

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/auth"
	"github.com/libloan/libloan/pkg/config"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/loans"
	"github.com/pkg/errors"
)

type handler struct {
	bookService *Service
	loanService *loans.Service
	cfg         *config.Config
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	books, p, err := h.bookService.ListBooks(ctx, ListBooksOptions{
		Params:          c.Request().URL.Query(),
		DefaultPageSize: h.cfg.DefaultPageSize,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	p.SetHeaders(c.Request(), c.Response().Header())

	return errors.WithStack(c.JSON(http.StatusOK, books))
}

// retrieve scopes a book's detail to customers currently holding it: anyone
// else gets a not-found, not a forbidden.
func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	holds, err := h.loanService.HoldsActiveLoan(ctx, customer.ID, id)
	if err != nil {
		return errors.WithStack(err)
	}
	if !holds {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) loan(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	err = h.loanService.RequestLoan(ctx, customer, id)
	if err != nil {
		return translateGuardErr(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) back(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	err = h.loanService.RequestReturn(ctx, customer, id)
	if err != nil {
		return translateGuardErr(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

// translateGuardErr maps guard violations onto their HTTP error; everything
// else passes through untouched.
func translateGuardErr(err error) error {
	var violation *loans.GuardViolation
	if errors.As(err, &violation) {
		return errcodes.GuardViolation(violation.Error())
	}
	return errors.WithStack(err)
}
