package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			if actor.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// teacherAccessMiddleware lets through admins and the teacher named by the :id path param.
func teacherAccessMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			if actor.CanActFor(ctx.Param("id")) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
