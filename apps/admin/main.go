package main

import (
	"log"
	"os"

	"github.com/andromeda0004/My-Tuition/assets"
	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/reminder"
	"github.com/andromeda0004/My-Tuition/core/student"
	emailsvc "github.com/andromeda0004/My-Tuition/services/email"
	logsvc "github.com/andromeda0004/My-Tuition/services/logger"
	"github.com/andromeda0004/My-Tuition/storage/database"
	sqlxrepos "github.com/andromeda0004/My-Tuition/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	rl := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rl.Enable(!conf.Debug)
	logger = rl

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	core.ParseEmailTemplates(assets.FS, conf, logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	student.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	tx := sqlxrepos.NewTransactor(db)
	students := sqlxrepos.NewStudentRepository(db)

	// start CLI
	cli := commandLine{
		db:        db,
		out:       os.Stdout,
		students:  student.NewService(students, tx, validate, logger),
		fees:      fee.NewService(sqlxrepos.NewPaymentRepository(db), students, tx, validate, logger),
		reminders: reminder.NewService(students, mailSvc, conf, logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
