package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

type eventApi struct {
	repo audit.Repository
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, repo audit.Repository) {
	api := eventApi{repo: repo}

	tg := g.Group("/teachers/:id/events", jwt, teacherAccessMiddleware())
	tg.GET("", api.query)
}

// query lists the newest audit events of a teacher: ?limit=N
func (api *eventApi) query(ctx echo.Context) error {
	limit, err := bindLimit(ctx, defaultEventsLimit)
	if err != nil {
		return err
	}
	if limit == 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	evts, err := api.repo.QueryEvents(ctx.Request().Context(), core.CleanString(ctx.Param("id")), limit)
	if err != nil {
		return errors.Wrap(err, "querying audit events")
	}
	if evts == nil {
		evts = []audit.Event{}
	}
	return ctx.JSON(http.StatusOK, evts)
}
