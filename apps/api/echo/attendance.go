package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

type statusRequest struct {
	Status *bool `json:"status"`
}

func registerAttendanceAPI(g *echo.Group, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance")
	ag.POST("", api.mark)
	ag.GET("/date/:date", api.byDate)
	ag.GET("/student/:id", api.forStudent)
	ag.PUT("/:id", api.updateStatus)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Mark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Mark")
	}
	res, err := api.svc.Mark(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return respond(ctx, http.StatusOK, res, "Attendance marked")
}

func (api *attendanceApi) byDate(ctx echo.Context) error {
	records, err := api.svc.ByDate(ctx.Request().Context(), ctx.Param("date"))
	if err != nil {
		return errors.Wrap(err, "getting attendance by date")
	}
	return respondList(ctx, records, len(records))
}

func (api *attendanceApi) forStudent(ctx echo.Context) error {
	sa, err := api.svc.ForStudent(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("startDate"), ctx.QueryParam("endDate"))
	if err != nil {
		return errors.Wrap(err, "getting student attendance")
	}
	return respond(ctx, http.StatusOK, sa)
}

func (api *attendanceApi) updateStatus(ctx echo.Context) error {
	var data statusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to statusRequest")
	}
	if data.Status == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "this field is required"})
	}
	r, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), *data.Status)
	if err != nil {
		return errors.Wrap(err, "updating attendance")
	}
	return respond(ctx, http.StatusOK, r)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return respond(ctx, http.StatusOK, nil, "Attendance record deleted")
}
