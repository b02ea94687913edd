package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, svc *report.Service) {
	api := reportApi{svc: svc}

	dg := g.Group("/dashboard")
	dg.GET("", api.dashboard)
	dg.GET("/batches", api.batchStatistics)
	dg.GET("/fees", api.feeStatistics)

	rg := g.Group("/reports")
	rg.GET("/attendance", api.attendanceReport)
	rg.GET("/attendance/export", api.exportAttendanceReport)
	rg.GET("/fees", api.feeReport)
	rg.GET("/fees/export", api.exportFeeReport)
}

func period(ctx echo.Context, required bool) (report.Period, error) {
	return report.ParsePeriod(ctx.QueryParam("startDate"), ctx.QueryParam("endDate"), required, time.Now())
}

func exportFormat(ctx echo.Context) (string, error) {
	switch format := core.CleanString(ctx.QueryParam("format"), true); format {
	case "", report.FormatCSV:
		return report.FormatCSV, nil
	case report.FormatXLSX:
		return format, nil
	default:
		return "", core.NewValidationError(nil, core.FieldError{Field: "format", Error: "format must be csv or xlsx"})
	}
}

func attachment(ctx echo.Context, filename, format string, content *bytes.Buffer) error {
	contentType := report.ContentTypeCSV
	if format == report.FormatXLSX {
		contentType = report.ContentTypeXLSX
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, contentType, content.Bytes())
}

// Handlers

func (api *reportApi) dashboard(ctx echo.Context) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context(), time.Now())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return respond(ctx, http.StatusOK, dash)
}

func (api *reportApi) batchStatistics(ctx echo.Context) error {
	stats, err := api.svc.BatchStatistics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing batch statistics")
	}
	return respondList(ctx, stats, len(stats))
}

func (api *reportApi) feeStatistics(ctx echo.Context) error {
	p, err := period(ctx, false)
	if err != nil {
		return err
	}
	stats, err := api.svc.FeeStatistics(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "computing fee statistics")
	}
	return respond(ctx, http.StatusOK, stats)
}

func (api *reportApi) attendanceReport(ctx echo.Context) error {
	p, err := period(ctx, true)
	if err != nil {
		return err
	}
	rep, err := api.svc.AttendanceReport(ctx.Request().Context(), p, ctx.QueryParam("batch"))
	if err != nil {
		return errors.Wrap(err, "building attendance report")
	}
	return respond(ctx, http.StatusOK, rep)
}

func (api *reportApi) exportAttendanceReport(ctx echo.Context) error {
	p, err := period(ctx, true)
	if err != nil {
		return err
	}
	format, err := exportFormat(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.AttendanceReport(ctx.Request().Context(), p, ctx.QueryParam("batch"))
	if err != nil {
		return errors.Wrap(err, "building attendance report")
	}

	var buf bytes.Buffer
	if format == report.FormatXLSX {
		err = report.WriteAttendanceXLSX(&buf, rep)
	} else {
		err = report.WriteAttendanceCSV(&buf, rep)
	}
	if err != nil {
		return errors.Wrap(err, "exporting attendance report")
	}
	return attachment(ctx, report.Filename("attendance", rep.StartDate, rep.EndDate, format), format, &buf)
}

func (api *reportApi) feeReport(ctx echo.Context) error {
	p, err := period(ctx, true)
	if err != nil {
		return err
	}
	rep, err := api.svc.FeeReport(ctx.Request().Context(), p, ctx.QueryParam("batch"))
	if err != nil {
		return errors.Wrap(err, "building fee report")
	}
	return respond(ctx, http.StatusOK, rep)
}

func (api *reportApi) exportFeeReport(ctx echo.Context) error {
	p, err := period(ctx, true)
	if err != nil {
		return err
	}
	format, err := exportFormat(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.FeeReport(ctx.Request().Context(), p, ctx.QueryParam("batch"))
	if err != nil {
		return errors.Wrap(err, "building fee report")
	}

	var buf bytes.Buffer
	if format == report.FormatXLSX {
		err = report.WriteFeeXLSX(&buf, rep)
	} else {
		err = report.WriteFeeCSV(&buf, rep)
	}
	if err != nil {
		return errors.Wrap(err, "exporting fee report")
	}
	return attachment(ctx, report.Filename("fee", rep.StartDate, rep.EndDate, format), format, &buf)
}
