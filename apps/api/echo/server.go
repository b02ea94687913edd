package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/reminder"
	"github.com/andromeda0004/My-Tuition/core/report"
	"github.com/andromeda0004/My-Tuition/core/student"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Translator ut.Translator

		StudentSvc    *student.Service
		FeeSvc        *fee.Service
		AttendanceSvc *attendance.Service
		ReportSvc     *report.Service
		ReminderSvc   *reminder.Service
	}

	Server struct {
		app      *echo.Echo
		deps     *Deps
		shutdown chan os.Signal
		errors   chan error
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps *Deps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.app.HideBanner = true
	s.app.Debug = deps.Conf.Debug
	s.app.Server.ReadTimeout = deps.Conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = deps.Conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.SignalShutdown)

	setupMiddleware(s.app, deps.Conf)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.GET("/", home)

	api := s.app.Group("/api")
	registerStudentAPI(api, s.deps.StudentSvc)
	registerFeeAPI(api, s.deps.FeeSvc, s.deps.ReminderSvc)
	registerAttendanceAPI(api, s.deps.AttendanceSvc)
	registerReportAPI(api, s.deps.ReportSvc)
	registerReminderAPI(api, s.deps.ReminderSvc)
}

// Start listens on the configured address; its outcome is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

// Errors reports the errors preventing the server from listening.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks for a graceful shutdown.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, response{Success: true, Message: "Welcome to My Tuition API!"})
}
