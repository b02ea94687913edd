package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core/reminder"
)

type reminderApi struct {
	svc *reminder.Service
}

type customMessageRequest struct {
	Message string `json:"message"`
}

func registerReminderAPI(g *echo.Group, svc *reminder.Service) {
	api := reminderApi{svc: svc}

	wg := g.Group("/whatsapp")
	wg.GET("/pending", api.pending)
	wg.GET("/:studentId", api.forStudent)
	wg.POST("/custom/:studentId", api.custom)

	eg := g.Group("/reminders/email")
	eg.POST("", api.emailPending)
	eg.POST("/:studentId", api.emailStudent)
}

// Handlers

func (api *reminderApi) pending(ctx echo.Context) error {
	reminders, err := api.svc.Pending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing reminders")
	}
	return respondList(ctx, reminders, len(reminders))
}

func (api *reminderApi) forStudent(ctx echo.Context) error {
	r, err := api.svc.ForStudent(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "building reminder")
	}
	return respond(ctx, http.StatusOK, r)
}

func (api *reminderApi) custom(ctx echo.Context) error {
	var data customMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to customMessageRequest")
	}
	r, err := api.svc.Custom(ctx.Request().Context(), ctx.Param("studentId"), data.Message)
	if err != nil {
		return errors.Wrap(err, "building custom message")
	}
	return respond(ctx, http.StatusOK, r)
}

func (api *reminderApi) emailPending(ctx echo.Context) error {
	res, err := api.svc.EmailPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "emailing reminders")
	}
	return respond(ctx, http.StatusAccepted, res, "Reminders queued")
}

func (api *reminderApi) emailStudent(ctx echo.Context) error {
	r, err := api.svc.EmailStudent(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "emailing reminder")
	}
	return respond(ctx, http.StatusAccepted, r, "Reminder queued")
}
