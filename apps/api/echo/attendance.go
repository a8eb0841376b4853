package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

// ToggleRequest names the lecture to mark or un-mark.
type ToggleRequest struct {
	TeacherID string `json:"teacher_id"`
	ClassID   string `json:"class_id"`
	Date      string `json:"date"` // YYYY-MM-DD
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance", jwt)
	ag.POST("/toggle", api.toggle)
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/verify", api.verify, adminMiddleware())

	tg := g.Group("/teachers/:id/attendance", jwt, teacherAccessMiddleware())
	tg.GET("", api.query)
}

// Handlers

func (api *attendanceApi) toggle(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data ToggleRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	date, err := core.ParseDay(data.Date)
	if err != nil {
		return core.NewFieldValidationError("date", "must be a date (YYYY-MM-DD)")
	}

	res, err := api.svc.Toggle(ctx.Request().Context(), actor, data.TeacherID, data.ClassID, date)
	if err != nil {
		return errors.Wrap(err, "toggling attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attendance record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) verify(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.Verify(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "verifying attendance record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// query: ?class_id=&status=verified&status=paid&from=YYYY-MM-DD&to=YYYY-MM-DD&ordering=-date&limit=
func (api *attendanceApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	f := attendance.Filter{
		TeacherID: ctx.Param("id"),
		ClassID:   ctx.QueryParam("class_id"),
	}
	for _, s := range ctx.QueryParams()["status"] {
		f.Statuses = append(f.Statuses, attendance.Status(s))
	}
	if f.From, err = bindDay(ctx, "from"); err != nil {
		return err
	}
	if f.To, err = bindDay(ctx, "to"); err != nil {
		return err
	}
	opts, err := bindQueryOptions(ctx)
	if err != nil {
		return err
	}

	recs, err := api.svc.List(ctx.Request().Context(), actor, f, opts)
	if err != nil {
		return errors.Wrap(err, "querying attendance records")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}
