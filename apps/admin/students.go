package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

var (
	importColumns   = []string{"name", "phone", "email", "batch", "grade", "monthlyfees", "yearlyfees", "notes"}
	requiredColumns = []string{"name", "phone", "batch", "grade"}
)

// importStudents creates the students of a CSV file in one transaction.
func (cli *commandLine) importStudents(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	nss, err := readStudentsCSV(f)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	students, err := cli.students.CreateMany(context.Background(), nss)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d students imported\n", len(students))
	return nil
}

func readStudentsCSV(r io.Reader) ([]student.NewStudent, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = core.CleanString(name, true /* lower */)
		name = strings.ReplaceAll(name, "_", "")
		for _, known := range importColumns {
			if name == known {
				cols[name] = i
			}
		}
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, errors.Errorf("missing column %q", name)
		}
	}

	var nss []student.NewStudent
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			if i, ok := cols[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		ns := student.NewStudent{
			Name:  get("name"),
			Phone: get("phone"),
			Email: get("email"),
			Batch: get("batch"),
			Notes: get("notes"),
		}
		if ns.Grade, err = strconv.Atoi(get("grade")); err != nil {
			return nil, errors.Errorf("line %d: invalid grade %q", line, get("grade"))
		}
		if ns.MonthlyFees, err = parseAmount(get("monthlyfees")); err != nil {
			return nil, errors.Wrapf(err, "line %d: monthly fees", line)
		}
		if ns.YearlyFees, err = parseAmount(get("yearlyfees")); err != nil {
			return nil, errors.Wrapf(err, "line %d: yearly fees", line)
		}
		nss = append(nss, ns)
	}
	if len(nss) == 0 {
		return nil, errors.New("no students")
	}
	return nss, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// pending prints the students who owe fees, as a table on a terminal and as CSV otherwise.
func (cli *commandLine) pending() error {
	reminders, err := cli.reminders.Links(context.Background())
	if err != nil {
		return err
	}

	if !isTerminalFunc() {
		w := csv.NewWriter(cli.out)
		_ = w.Write([]string{"id", "name", "batch", "phone", "totalFees", "paidFees", "balanceFees", "whatsappLink"})
		for _, r := range reminders {
			_ = w.Write([]string{
				r.StudentID, r.StudentName, r.Batch, r.Phone,
				r.TotalFees.String(), r.PaidFees.String(), r.BalanceFees.String(), r.WhatsAppLink,
			})
		}
		w.Flush()
		return w.Error()
	}

	if len(reminders) == 0 {
		_, _ = fmt.Fprintln(cli.out, "No pending fees.")
		return nil
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tBATCH\tPHONE\tTOTAL\tPAID\tBALANCE")
	total := decimal.Zero
	for _, r := range reminders {
		total = total.Add(r.BalanceFees)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StudentName, r.Batch, r.Phone, r.TotalFees, r.PaidFees, r.BalanceFees)
	}
	_, _ = fmt.Fprintf(tw, "\t\t\t\t%d students\t%s\n", len(reminders), total)
	return tw.Flush()
}
