package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/reminder"
)

type feeApi struct {
	svc       *fee.Service
	reminders *reminder.Service
}

func registerFeeAPI(g *echo.Group, svc *fee.Service, reminders *reminder.Service) {
	api := feeApi{svc: svc, reminders: reminders}

	fg := g.Group("/fees")
	fg.POST("", api.record)
	fg.GET("/pending", api.pending)
	fg.GET("/summary", api.summary)
	fg.GET("/student/:id", api.statement)
	fg.DELETE("/:id", api.void)
}

// Handlers

func (api *feeApi) record(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	receipt, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return respond(ctx, http.StatusCreated, receipt, "Payment recorded")
}

func (api *feeApi) void(ctx echo.Context) error {
	if _, err := api.svc.Void(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "voiding payment")
	}
	return respond(ctx, http.StatusOK, nil, "Payment deleted")
}

func (api *feeApi) statement(ctx echo.Context) error {
	st, err := api.svc.Statement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting statement")
	}
	return respond(ctx, http.StatusOK, st)
}

// pending lists the students who owe fees, largest balance first, each with its reminder link.
func (api *feeApi) pending(ctx echo.Context) error {
	reminders, err := api.reminders.Links(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing pending fees")
	}
	return respondList(ctx, reminders, len(reminders))
}

func (api *feeApi) summary(ctx echo.Context) error {
	sum, err := api.svc.Summary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing fees")
	}
	return respond(ctx, http.StatusOK, sum)
}
