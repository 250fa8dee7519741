package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/libloan/libloan/pkg/customers"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	authService     *Service
	customerService *customers.Service
}

func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	_, err := h.customerService.Register(ctx, params.Email, params.FirstName, params.LastName, params.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	customer, err := h.customerService.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(customer)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		JWTToken string `json:"jwt_token"`
	}{token}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// resetPasswordRequest always answers 204 so the endpoint can't be used to
// probe which emails exist. The token reaches the customer out of band.
func (h *handler) resetPasswordRequest(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	params := ResetPasswordRequestPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	customer, err := h.customerService.RetrieveCustomer(ctx, customers.RetrieveCustomerOptions{
		Email: &params.Email,
	})
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Customer")) {
			return errors.WithStack(c.NoContent(http.StatusNoContent))
		}
		return errors.WithStack(err)
	}

	_, err = h.customerService.GenerateResetPasswordToken(ctx, customer)
	if err != nil {
		return errors.WithStack(err)
	}
	log.Info("reset password token generated", logger.Data{"customer_id": customer.ID})

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) resetPasswordConfirm(c echo.Context) error {
	ctx := c.Request().Context()

	params := ResetPasswordConfirmPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	_, err := h.customerService.ResetPassword(ctx, params.Token, params.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
