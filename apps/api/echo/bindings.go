package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ushauri/core/listing"
)

// bindQuery binds the query string of a GET request to filter, including its ordering and equality parameters.
func bindQuery(ctx echo.Context, filter *listing.QueryFilter) error {
	if err := ctx.Bind(filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters").SetInternal(err)
	}
	filter.SetExtra(ctx.QueryParams())
	return nil
}
