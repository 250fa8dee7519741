package loans

import (
	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/config"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers loan history routes on a pre-configured
// group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config) {
	h := &handler{
		loanService: NewService(db, cfg.LoanPeriod),
	}

	g.GET("", h.list)
}
