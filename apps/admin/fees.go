package main

import (
	"context"
	"fmt"

	"github.com/andromeda0004/My-Tuition/core/fee"
)

// reconcile recomputes paid fees from the payments ledger, for one student or all of them.
func (cli *commandLine) reconcile(studentID string) error {
	ctx := context.Background()

	var recs []fee.Reconciliation
	if studentID != "" {
		rec, err := cli.fees.Reconcile(ctx, studentID)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	} else {
		var err error
		if recs, err = cli.fees.ReconcileAll(ctx); err != nil {
			return err
		}
	}

	changed := 0
	for _, rec := range recs {
		if !rec.Changed() {
			continue
		}
		changed++
		_, _ = fmt.Fprintf(cli.out, "%s (%s): paid %s -> %s, balance %s\n",
			rec.Student.Name, rec.Student.ID, rec.PaidBefore, rec.PaidAfter, rec.Student.BalanceFees)
	}
	_, _ = fmt.Fprintf(cli.out, "%d of %d students reconciled\n", changed, len(recs))
	return nil
}

func (cli *commandLine) digest() error {
	if err := cli.reminders.Digest(context.Background()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, "Digest sent")
	return nil
}
