package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core/advance"
)

type advanceApi struct {
	svc *advance.Service
}

type (
	GrantRequest struct {
		Amount decimal.Decimal `json:"amount"`
		Notes  string          `json:"notes"`
	}

	AdvancesResponse struct {
		Entries []advance.Entry `json:"entries"`
		Balance decimal.Decimal `json:"balance"`
	}
)

func registerAdvanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *advance.Service) {
	api := advanceApi{svc: svc}

	tg := g.Group("/teachers/:id/advances", jwt, teacherAccessMiddleware())
	tg.GET("", api.query)
	tg.POST("", api.grant, adminMiddleware())
}

// Handlers

func (api *advanceApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.List(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing advances")
	}
	if entries == nil {
		entries = []advance.Entry{}
	}
	return ctx.JSON(http.StatusOK, AdvancesResponse{Entries: entries, Balance: advance.Balance(entries)})
}

func (api *advanceApi) grant(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data GrantRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GrantRequest")
	}
	e, err := api.svc.Grant(ctx.Request().Context(), actor, ctx.Param("id"), data.Amount, data.Notes)
	if err != nil {
		return errors.Wrap(err, "granting advance")
	}
	return ctx.JSON(http.StatusCreated, e)
}
