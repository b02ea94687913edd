package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/andromeda0004/My-Tuition/apps/api/echo"
	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/reminder"
	"github.com/andromeda0004/My-Tuition/core/report"
	"github.com/andromeda0004/My-Tuition/core/student"
	emailsvc "github.com/andromeda0004/My-Tuition/services/email"
	logsvc "github.com/andromeda0004/My-Tuition/services/logger"
	"github.com/andromeda0004/My-Tuition/services/scheduler"
	"github.com/andromeda0004/My-Tuition/storage/database"
	inmemdb "github.com/andromeda0004/My-Tuition/storage/database/inmem"
	sqlxrepos "github.com/andromeda0004/My-Tuition/storage/database/sqlx"
)

const digestTimeout = 2 * time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the set of repositories backed by the configured database engine.
type Storage struct {
	dig.Out

	Closer     io.Closer
	Tx         core.Transactor
	Students   student.Repository
	Payments   fee.Repository
	Attendance attendance.Repository
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Translator ut.Translator

	StudentSvc    *student.Service
	FeeSvc        *fee.Service
	AttendanceSvc *attendance.Service
	ReportSvc     *report.Service
	ReminderSvc   *reminder.Service
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == core.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on exit")
		db := inmemdb.NewDB()
		return Storage{
			Closer:     nopCloser{},
			Tx:         inmemdb.NewTransactor(db),
			Students:   inmemdb.NewStudentRepository(db),
			Payments:   inmemdb.NewPaymentRepository(db),
			Attendance: inmemdb.NewAttendanceRepository(db),
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Storage{
		Closer:     db,
		Tx:         sqlxrepos.NewTransactor(db),
		Students:   sqlxrepos.NewStudentRepository(db),
		Payments:   sqlxrepos.NewPaymentRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	student.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Translator:    p.Translator,
		StudentSvc:    p.StudentSvc,
		FeeSvc:        p.FeeSvc,
		AttendanceSvc: p.AttendanceSvc,
		ReportSvc:     p.ReportSvc,
		ReminderSvc:   p.ReminderSvc,
	})
}

func newScheduler(conf *core.Config, logger core.Logger, reminders *reminder.Service) (*scheduler.Scheduler, error) {
	s := scheduler.New(logger)
	err := s.Add(scheduler.Job{
		Name:     "pending fees digest",
		Schedule: conf.Reminders.Schedule,
		Timeout:  digestTimeout,
		Run: func(ctx context.Context) error {
			return reminders.Digest(ctx)
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(student.NewService))
	must(c.Provide(fee.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(reminder.NewService))
	must(c.Provide(newServer))
	must(c.Provide(newScheduler))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
