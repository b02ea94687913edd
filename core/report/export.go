package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Filename returns the download name of a report export, eg: fee_report_2024-01-01_to_2024-01-31.csv
func Filename(kind, startDate, endDate, format string) string {
	return fmt.Sprintf("%s_report_%s_to_%s.%s", kind, startDate, endDate, format)
}

func attendanceRows(rep AttendanceReport) [][]interface{} {
	days := make([]string, 0, len(rep.AttendanceByDate))
	for _, da := range rep.AttendanceByDate {
		days = append(days, da.Date)
	}

	header := []interface{}{"Student Name", "Batch"}
	for _, day := range days {
		header = append(header, day)
	}
	header = append(header, "Present Days", "Absent Days", "Percentage")

	rows := [][]interface{}{header}
	for _, sa := range rep.StudentSummary {
		row := []interface{}{sa.Name, sa.Batch}
		for _, day := range days {
			present, ok := sa.statuses[day]
			switch {
			case !ok:
				row = append(row, "N/A")
			case present:
				row = append(row, "Present")
			default:
				row = append(row, "Absent")
			}
		}
		row = append(row, sa.PresentDays, sa.AbsentDays, fmt.Sprintf("%.2f%%", sa.AttendancePercentage))
		rows = append(rows, row)
	}
	return rows
}

func feeRows(rep FeeReport) [][]interface{} {
	rows := [][]interface{}{{"Date", "Student Name", "Batch", "Amount", "Payment Mode", "Notes"}}
	for _, t := range rep.Transactions {
		rows = append(rows, []interface{}{t.Date, t.StudentName, t.Batch, t.Amount, string(t.PaymentMode), t.Notes})
	}
	return append(rows, []interface{}{"", "", "TOTAL", rep.Summary.TotalCollection, "", ""})
}

func writeCSV(w io.Writer, rows [][]interface{}) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = fmt.Sprint(cell)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func writeXLSX(w io.Writer, sheet string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(index)
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "deleting default sheet")
	}

	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			if d, ok := cell.(decimal.Decimal); ok {
				cell, _ = d.Float64()
			}
			values[j] = cell
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "computing cell name")
		}
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}
	return errors.Wrap(f.Write(w), "writing xlsx")
}

func WriteAttendanceCSV(w io.Writer, rep AttendanceReport) error {
	return writeCSV(w, attendanceRows(rep))
}

func WriteFeeCSV(w io.Writer, rep FeeReport) error {
	return writeCSV(w, feeRows(rep))
}

func WriteAttendanceXLSX(w io.Writer, rep AttendanceReport) error {
	return writeXLSX(w, "Attendance", attendanceRows(rep))
}

func WriteFeeXLSX(w io.Writer, rep FeeReport) error {
	return writeXLSX(w, "Fees", feeRows(rep))
}
