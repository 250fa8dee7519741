package genres

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	genreService *Service
}

type listGenresParams struct {
	Limit  *int `query:"limit"`
	Offset *int `query:"offset"`
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := listGenresParams{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	genres, err := h.genreService.ListGenres(ctx, ListGenresOptions{
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, genres))
}
