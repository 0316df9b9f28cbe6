package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core/listing"
)

// routes are the dashboard's API paths, relative to /v1, keyed by list name.
var routes = map[string]string{
	"advisors":      "/advisors",
	"students":      "/accounting/advisor-students",
	"expenses":      "/accounting/extra-expenses",
	"records":       "/accounting/financial-records",
	"cancellations": "/supervision/cancellations",
}

type listingApi struct {
	svc      *listing.Service
	validate *validator.Validate
}

func registerListingAPI(g *echo.Group, svc *listing.Service, validate *validator.Validate) {
	api := listingApi{
		svc:      svc,
		validate: validate,
	}

	for _, name := range svc.Lists() {
		path, ok := routes[name]
		if !ok {
			path = "/" + name
		}
		g.GET(path, api.query(name))
	}
	g.GET("/lists", api.lists)
}

// Handlers

func (api *listingApi) query(list string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		filter := new(listing.QueryFilter)
		if err := bindQuery(ctx, filter); err != nil {
			return err
		}
		if err := filter.Validate(api.validate); err != nil {
			return err
		}

		page, err := api.svc.Query(list, *filter)
		if err != nil {
			return errors.Wrapf(err, "querying %s", list)
		}
		return ctx.JSON(http.StatusOK, page)
	}
}

func (api *listingApi) lists(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Lists())
}
