package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/report"
	testutil "github.com/andromeda0004/My-Tuition/tests"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func mark(t *testing.T, store *testutil.Store, day string, statuses map[string]bool) {
	t.Helper()
	m := attendance.Mark{Date: day}
	for id, present := range statuses {
		present := present
		m.Records = append(m.Records, attendance.Entry{StudentID: id, Status: &present})
	}
	_, err := store.AttendanceSvc.Mark(context.Background(), m)
	require.NoError(t, err)
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 2, 14, 15, 4, 5, 0, time.UTC)

	p, err := report.ParsePeriod("", "", false, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), p.From)
	assert.Equal(t, core.EndOfDay(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)), p.To)

	p, err = report.ParsePeriod("2024-01-05", "2024-01-05", true, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), p.From)
	assert.Equal(t, time.Date(2024, 1, 5, 23, 59, 59, 999999999, time.UTC), p.To)

	tests := []struct {
		name       string
		start, end string
		required   bool
	}{
		{name: "required", required: true},
		{name: "only start", start: "2024-01-01"},
		{name: "bad start", start: "01/01/2024", end: "2024-01-31"},
		{name: "bad end", start: "2024-01-01", end: "soon"},
		{name: "reversed", start: "2024-02-01", end: "2024-01-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := report.ParsePeriod(tt.start, tt.end, tt.required, now)
			assert.True(t, core.IsValidationError(err), "err = %v", err)
		})
	}
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	now := time.Now().UTC()
	today := core.FormatDay(now)

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	ravi := testutil.CreateStudent(t, store, "Ravi Kumar", "Morning", 9, 0, 20000)
	meena := testutil.CreateStudent(t, store, "Meena Iyer", "Evening", 3, 100, 0)
	testutil.RecordPayment(t, store, meena.ID, 1200) // fully paid
	testutil.RecordPayment(t, store, asha.ID, 500)

	mark(t, store, today, map[string]bool{asha.ID: true, ravi.ID: false, meena.ID: true})

	dash, err := store.ReportSvc.Dashboard(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, 3, dash.TotalStudents)
	require.Equal(t, 2, dash.FeeDefaulters.Count)
	assert.Equal(t, ravi.ID, dash.FeeDefaulters.Students[0].ID)
	assert.Equal(t, asha.ID, dash.FeeDefaulters.Students[1].ID)
	assert.True(t, dash.FeeDefaulters.Students[1].BalanceFees.Equal(dec(11500)))

	assert.Equal(t, 3, dash.TodayAttendance.Total)
	assert.Equal(t, 2, dash.TodayAttendance.Present)
	assert.Equal(t, 1, dash.TodayAttendance.Absent)
	require.Len(t, dash.TodayAttendance.Absentees, 1)
	assert.Equal(t, ravi.ID, dash.TodayAttendance.Absentees[0].StudentID)
	assert.Equal(t, 66.67, dash.TodayAttendance.AttendanceRate)

	assert.Len(t, dash.Financials.RecentTransactions, 2)
	assert.True(t, dash.Financials.MonthlyCollection.Equal(dec(1700)))

	assert.Equal(t, []report.BatchCount{{Batch: "Morning", Count: 2}, {Batch: "Evening", Count: 1}}, dash.BatchDistribution)
}

func TestService_Dashboard_Empty(t *testing.T) {
	store := testutil.NewStore(t)

	dash, err := store.ReportSvc.Dashboard(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, dash.TotalStudents)
	assert.Empty(t, dash.FeeDefaulters.Students)
	assert.Zero(t, dash.TodayAttendance.AttendanceRate)
	assert.True(t, dash.Financials.MonthlyCollection.IsZero())
}

func TestService_Statistics(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	ravi := testutil.CreateStudent(t, store, "Ravi Kumar", "Morning", 9, 0, 20000)
	meena := testutil.CreateStudent(t, store, "Meena Iyer", "Evening", 3, 100, 0)
	testutil.RecordPayment(t, store, asha.ID, 1000, "2024-01-10")
	testutil.RecordPayment(t, store, ravi.ID, 5000, "2024-01-10")
	testutil.RecordPayment(t, store, meena.ID, 300, "2024-01-12")
	testutil.RecordPayment(t, store, meena.ID, 300, "2024-02-01") // out of period

	stats, err := store.ReportSvc.BatchStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Morning", stats[0].Batch)
	assert.Equal(t, 2, stats[0].StudentCount)
	assert.True(t, stats[0].TotalFees.Equal(dec(32000)))
	assert.True(t, stats[0].CollectedFees.Equal(dec(6000)))
	assert.True(t, stats[0].PendingFees.Equal(dec(26000)))

	period, err := report.ParsePeriod("2024-01-01", "2024-01-31", true, time.Now())
	require.NoError(t, err)
	fs, err := store.ReportSvc.FeeStatistics(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, 3, fs.Summary.TotalTransactions)
	assert.True(t, fs.Summary.TotalAmount.Equal(dec(6300)))
	assert.True(t, fs.Summary.AveragePerTransaction.Equal(dec(2100)))
	require.Len(t, fs.DailyCollection, 2)
	assert.Equal(t, "2024-01-10", fs.DailyCollection[0].Date)
	assert.Equal(t, 2, fs.DailyCollection[0].Count)
	assert.True(t, fs.DailyCollection[0].Total.Equal(dec(6000)))
	require.Len(t, fs.PaymentModeStats, 1)
	assert.Equal(t, fee.ModeCash, fs.PaymentModeStats[0].Mode)
}

func TestService_FeeReport(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	meena := testutil.CreateStudent(t, store, "Meena Iyer", "Evening", 3, 100, 0)
	testutil.RecordPayment(t, store, asha.ID, 1000, "2024-01-12")
	_, err := store.FeeSvc.Record(ctx, fee.NewPayment{StudentID: asha.ID, AmountPaid: dec(3000), PaymentDate: "2024-01-10", PaymentMode: fee.ModeUPI, Notes: "term, 1"})
	require.NoError(t, err)
	testutil.RecordPayment(t, store, meena.ID, 300, "2024-01-11")

	period, err := report.ParsePeriod("2024-01-01", "2024-01-31", true, time.Now())
	require.NoError(t, err)

	rep, err := store.ReportSvc.FeeReport(ctx, period, "")
	require.NoError(t, err)
	assert.Equal(t, "All", rep.Batch)
	assert.True(t, rep.Summary.TotalCollection.Equal(dec(4300)))
	assert.Equal(t, 3, rep.Summary.TransactionCount)
	require.Len(t, rep.Summary.PaymentModes, 2)
	assert.Equal(t, fee.ModeUPI, rep.Summary.PaymentModes[0].Mode)
	assert.Equal(t, 69.77, rep.Summary.PaymentModes[0].Percentage)
	require.Len(t, rep.StudentCollection, 2)
	assert.Equal(t, asha.ID, rep.StudentCollection[0].StudentID)
	assert.Equal(t, 2, rep.StudentCollection[0].TransactionCount)
	require.Len(t, rep.Transactions, 3)
	assert.Equal(t, []string{"2024-01-10", "2024-01-11", "2024-01-12"},
		[]string{rep.Transactions[0].Date, rep.Transactions[1].Date, rep.Transactions[2].Date})

	batch, err := store.ReportSvc.FeeReport(ctx, period, "Evening")
	require.NoError(t, err)
	assert.Equal(t, "Evening", batch.Batch)
	assert.True(t, batch.Summary.TotalCollection.Equal(dec(300)))

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.WriteFeeCSV(&buf, rep))
		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, []string{"Date", "Student Name", "Batch", "Amount", "Payment Mode", "Notes"}, rows[0])
		assert.Equal(t, []string{"2024-01-10", "Asha Rao", "Morning", "3000", "UPI", "term, 1"}, rows[1])
		assert.Equal(t, []string{"", "", "TOTAL", "4300", "", ""}, rows[4])
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.WriteFeeXLSX(&buf, rep))
		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, []string{"Fees"}, f.GetSheetList())
		rows, err := f.GetRows("Fees")
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, "TOTAL", rows[4][2])
		assert.Equal(t, "4300", rows[4][3])
	})
}

func TestService_AttendanceReport(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	ravi := testutil.CreateStudent(t, store, "Ravi Kumar", "Morning", 5, 1000, 0)
	meena := testutil.CreateStudent(t, store, "Meena Iyer", "Evening", 3, 100, 0)
	mark(t, store, "2024-03-01", map[string]bool{asha.ID: true, ravi.ID: false, meena.ID: true})
	mark(t, store, "2024-03-02", map[string]bool{asha.ID: true})
	mark(t, store, "2024-04-01", map[string]bool{asha.ID: false}) // out of period

	period, err := report.ParsePeriod("2024-03-01", "2024-03-31", true, time.Now())
	require.NoError(t, err)
	rep, err := store.ReportSvc.AttendanceReport(ctx, period, "Morning")
	require.NoError(t, err)

	assert.Equal(t, "Morning", rep.Batch)
	assert.Equal(t, 2, rep.TotalStudents)
	require.Len(t, rep.AttendanceByDate, 2)
	assert.Equal(t, report.DateAttendance{Date: "2024-03-01", Present: 1, Absent: 1, Total: 2, AttendanceRate: 50}, rep.AttendanceByDate[0])
	require.Len(t, rep.StudentSummary, 2)
	assert.Equal(t, "Asha Rao", rep.StudentSummary[0].Name)
	assert.Equal(t, 2, rep.StudentSummary[0].PresentDays)
	assert.Equal(t, 100.0, rep.StudentSummary[0].AttendancePercentage)

	var buf bytes.Buffer
	require.NoError(t, report.WriteAttendanceCSV(&buf, rep))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Student Name", "Batch", "2024-03-01", "2024-03-02", "Present Days", "Absent Days", "Percentage"}, rows[0])
	assert.Equal(t, []string{"Asha Rao", "Morning", "Present", "Present", "2", "0", "100.00%"}, rows[1])
	assert.Equal(t, []string{"Ravi Kumar", "Morning", "Absent", "N/A", "0", "1", "0.00%"}, rows[2])

	buf.Reset()
	require.NoError(t, report.WriteAttendanceXLSX(&buf, rep))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err = f.GetRows("Attendance")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "fee_report_2024-01-01_to_2024-01-31.csv", report.Filename("fee", "2024-01-01", "2024-01-31", report.FormatCSV))
}
