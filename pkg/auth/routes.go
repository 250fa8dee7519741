package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/customers"
)

// RegisterRoutes registers all auth routes and returns the auth service so
// the server can build the authentication middleware from it.
func RegisterRoutes(e *echo.Echo, customerService *customers.Service, jwtSecret string) *Service {
	authService := NewService(jwtSecret)

	h := &handler{
		authService:     authService,
		customerService: customerService,
	}

	authGroup := e.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/password-reset/request", h.resetPasswordRequest)
	authGroup.POST("/password-reset/confirm", h.resetPasswordConfirm)

	return authService
}
