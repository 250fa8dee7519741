package books

import (
	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/config"
	"github.com/libloan/libloan/pkg/loans"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config) {
	h := &handler{
		bookService: NewService(db),
		loanService: loans.NewService(db, cfg.LoanPeriod),
		cfg:         cfg,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PUT("/:id/loan", h.loan)
	g.DELETE("/:id/loan", h.back)
}
