package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/reminder"
	"github.com/andromeda0004/My-Tuition/core/student"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db  *sqlx.DB
	out io.Writer

	students  *student.Service
	fees      *fee.Service
	reminders *reminder.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, version, redo, ...)")
	fmt.Println("  import -file FILE.csv - create the students listed in a CSV file, all or none")
	fmt.Println("  pending - list the students with pending fees (CSV when not on a terminal)")
	fmt.Println("  reconcile [-student ID] - recompute paid fees from the payments ledger")
	fmt.Println("  digest - email the pending fees digest now")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "The CSV file; the header names the columns (name, phone, batch, grade, ...).")

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileStudent := reconcileCmd.String("student", "", "Only reconcile this student.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importStudents(*importFile)
	case "pending":
		return cli.pending()
	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.reconcile(*reconcileStudent)
	case "digest":
		return cli.digest()
	default:
		cli.printUsage()
		return errHelp
	}
}
