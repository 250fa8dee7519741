package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/libloan/libloan/pkg/auth"
	"github.com/libloan/libloan/pkg/binder"
	"github.com/libloan/libloan/pkg/books"
	"github.com/libloan/libloan/pkg/config"
	"github.com/libloan/libloan/pkg/customers"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/genres"
	"github.com/libloan/libloan/pkg/loans"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	customerService := customers.NewService(db, cfg.BcryptCost, cfg.ResetTokenSize)

	// Register auth routes and get the auth service
	authService := auth.RegisterRoutes(e, customerService, cfg.JWTSecret)
	authMiddleware := auth.NewMiddleware(authService, customerService)

	// Everything below requires an authenticated customer.
	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	books.RegisterRoutesWithGroup(booksGroup, db, cfg)

	genresGroup := e.Group("/genres")
	genresGroup.Use(authMiddleware.Authenticate)
	genres.RegisterRoutesWithGroup(genresGroup, db)

	historiesGroup := e.Group("/loan-histories")
	historiesGroup.Use(authMiddleware.Authenticate)
	loans.RegisterRoutesWithGroup(historiesGroup, db, cfg)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
