package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
	reportsvc "github.com/trezcool/lecturepay/services/report"
)

type settlementApi struct {
	svc    *settlement.Service
	roster *roster.Service
}

func registerSettlementAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *settlement.Service, rosterSvc *roster.Service) {
	api := settlementApi{svc: svc, roster: rosterSvc}

	tg := g.Group("/teachers/:id", jwt, teacherAccessMiddleware())
	tg.GET("/settlement", api.propose)
	tg.POST("/settlement", api.commit, adminMiddleware())
	tg.GET("/payments", api.queryPayments)
	tg.GET("/payments/export", api.exportPayments)

	g.GET("/payments/:id", api.retrievePayment, jwt)
}

// Handlers

func (api *settlementApi) propose(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	prop, err := api.svc.Propose(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "proposing settlement")
	}
	return ctx.JSON(http.StatusOK, prop)
}

func (api *settlementApi) commit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data settlement.CommitRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CommitRequest")
	}
	data.TeacherID = ctx.Param("id")

	res, err := api.svc.Commit(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "committing settlement")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *settlementApi) payments(ctx echo.Context) ([]settlement.Payment, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bindQueryOptions(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := api.svc.ListPayments(ctx.Request().Context(), actor, ctx.Param("id"), opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	if ps == nil {
		ps = []settlement.Payment{}
	}
	return ps, nil
}

func (api *settlementApi) queryPayments(ctx echo.Context) error {
	ps, err := api.payments(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ps)
}

func (api *settlementApi) exportPayments(ctx echo.Context) error {
	ps, err := api.payments(ctx)
	if err != nil {
		return err
	}
	teacher, err := api.roster.Teacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}

	var buf bytes.Buffer
	if err = reportsvc.WritePayments(&buf, teacher, ps); err != nil {
		return errors.Wrap(err, "exporting payments")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+reportsvc.PaymentsFilename(teacher, core.Now())+`"`)
	return ctx.Blob(http.StatusOK, reportsvc.ContentType, buf.Bytes())
}

func (api *settlementApi) retrievePayment(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.GetPayment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting payment")
	}
	return ctx.JSON(http.StatusOK, p)
}
