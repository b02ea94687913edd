package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/student"
)

const (
	defaultersLimit         = 10
	recentTransactionsLimit = 5
)

// Service builds read-only projections over students, payments and attendance.
type Service struct {
	students   student.Repository
	payments   fee.Repository
	attendance attendance.Repository
}

func NewService(students student.Repository, payments fee.Repository, att attendance.Repository) *Service {
	return &Service{students: students, payments: payments, attendance: att}
}

// ParsePeriod parses a YYYY-MM-DD day range. When both ends are empty and required is false,
// the period defaults to the month of `now`.
func ParsePeriod(startDate, endDate string, required bool, now time.Time) (Period, error) {
	startDate, endDate = core.CleanString(startDate), core.CleanString(endDate)
	if startDate == "" || endDate == "" {
		if required || startDate != "" || endDate != "" {
			return Period{}, core.NewValidationError(errors.New("please provide startDate and endDate"))
		}
		from := core.StartOfMonth(now)
		return Period{From: from, To: core.EndOfDay(from.AddDate(0, 1, -1))}, nil
	}

	from, err := core.ParseDay(startDate)
	if err != nil {
		return Period{}, core.NewValidationError(err, core.FieldError{Field: "startDate", Error: "invalid date format, please use YYYY-MM-DD"})
	}
	to, err := core.ParseDay(endDate)
	if err != nil {
		return Period{}, core.NewValidationError(err, core.FieldError{Field: "endDate", Error: "invalid date format, please use YYYY-MM-DD"})
	}
	if to.Before(from) {
		return Period{}, core.NewValidationError(nil, core.FieldError{Field: "endDate", Error: "endDate cannot be before startDate"})
	}
	return Period{From: from, To: core.EndOfDay(to)}, nil
}

func (svc *Service) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	students, err := svc.students.QueryStudents(ctx, student.QueryFilter{},
		core.DBOrdering{Field: "balanceFees"},
		core.DBOrdering{Field: "name", Ascending: true},
	)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying students")
	}

	dash := Dashboard{
		TotalStudents:     len(students),
		FeeDefaulters:     Defaulters{Students: make([]Defaulter, 0, defaultersLimit)},
		BatchDistribution: batchDistribution(students),
	}
	for _, s := range students {
		if len(dash.FeeDefaulters.Students) == defaultersLimit || !s.HasPendingFees() {
			break
		}
		dash.FeeDefaulters.Students = append(dash.FeeDefaulters.Students, Defaulter{
			ID:          s.ID,
			Name:        s.Name,
			Batch:       s.Batch,
			Phone:       s.Phone,
			BalanceFees: s.BalanceFees,
		})
	}
	dash.FeeDefaulters.Count = len(dash.FeeDefaulters.Students)

	today := core.StartOfDay(now)
	records, err := svc.attendance.QueryAttendance(ctx, attendance.Filter{From: today, To: core.EndOfDay(today)})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying attendance")
	}
	dash.TodayAttendance = dayAttendance(records)

	recent, err := svc.payments.QueryPayments(ctx, fee.PaymentFilter{Limit: recentTransactionsLimit})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying recent payments")
	}
	monthStart := core.StartOfMonth(now)
	monthly, err := svc.payments.QueryPayments(ctx, fee.PaymentFilter{
		From: monthStart,
		To:   core.EndOfDay(monthStart.AddDate(0, 1, -1)),
	})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying monthly payments")
	}
	dash.Financials = Financials{RecentTransactions: recent, MonthlyCollection: total(monthly)}

	return dash, nil
}

func dayAttendance(records []attendance.RecordDetail) DayAttendance {
	day := DayAttendance{Total: len(records), Absentees: make([]Absentee, 0)}
	for _, r := range records {
		if r.Status {
			day.Present++
			continue
		}
		day.Absentees = append(day.Absentees, Absentee{ID: r.ID, StudentID: r.StudentID, Name: r.StudentName, Batch: r.Batch})
	}
	day.Absent = len(day.Absentees)
	day.AttendanceRate = core.RoundPercent(day.Present, day.Total)
	return day
}

func total(details []fee.PaymentDetail) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range details {
		sum = sum.Add(d.AmountPaid)
	}
	return sum
}

// batchDistribution counts students per batch, largest batch first.
func batchDistribution(students []student.Student) []BatchCount {
	counts := make(map[string]int)
	for _, s := range students {
		counts[s.Batch]++
	}
	dist := make([]BatchCount, 0, len(counts))
	for batch, count := range counts {
		dist = append(dist, BatchCount{Batch: batch, Count: count})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Batch < dist[j].Batch
	})
	return dist
}

func (svc *Service) BatchStatistics(ctx context.Context) ([]BatchStatistics, error) {
	students, err := svc.students.QueryStudents(ctx, student.QueryFilter{}, core.DBOrdering{Field: "name", Ascending: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	byBatch := make(map[string]*BatchStatistics)
	for _, s := range students {
		bs, ok := byBatch[s.Batch]
		if !ok {
			bs = &BatchStatistics{Batch: s.Batch, TotalFees: decimal.Zero, CollectedFees: decimal.Zero, PendingFees: decimal.Zero}
			byBatch[s.Batch] = bs
		}
		bs.StudentCount++
		bs.TotalFees = bs.TotalFees.Add(s.TotalFees)
		bs.CollectedFees = bs.CollectedFees.Add(s.PaidFees)
		bs.PendingFees = bs.PendingFees.Add(s.BalanceFees)
	}

	stats := make([]BatchStatistics, 0, len(byBatch))
	for _, bs := range byBatch {
		stats = append(stats, *bs)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].StudentCount != stats[j].StudentCount {
			return stats[i].StudentCount > stats[j].StudentCount
		}
		return stats[i].Batch < stats[j].Batch
	})
	return stats, nil
}

func (svc *Service) FeeStatistics(ctx context.Context, period Period) (FeeStatistics, error) {
	details, err := svc.payments.QueryPayments(ctx, fee.PaymentFilter{From: period.From, To: period.To})
	if err != nil {
		return FeeStatistics{}, errors.Wrap(err, "querying payments")
	}

	stats := FeeStatistics{
		Summary: FeeStatisticsSummary{
			StartDate:             period.From,
			EndDate:               period.To,
			TotalAmount:           total(details),
			TotalTransactions:     len(details),
			AveragePerTransaction: decimal.Zero,
		},
		DailyCollection:  dailyCollection(details),
		PaymentModeStats: fee.ModeDistribution(details),
	}
	if n := stats.Summary.TotalTransactions; n > 0 {
		stats.Summary.AveragePerTransaction = stats.Summary.TotalAmount.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	return stats, nil
}

// dailyCollection totals payments per UTC day, oldest day first.
func dailyCollection(details []fee.PaymentDetail) []DailyTotal {
	byDay := make(map[string]*DailyTotal)
	for _, d := range details {
		day := core.FormatDay(d.PaymentDate)
		dt, ok := byDay[day]
		if !ok {
			dt = &DailyTotal{Date: day, Total: decimal.Zero}
			byDay[day] = dt
		}
		dt.Count++
		dt.Total = dt.Total.Add(d.AmountPaid)
	}

	daily := make([]DailyTotal, 0, len(byDay))
	for _, dt := range byDay {
		daily = append(daily, *dt)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	return daily
}

func batchLabel(batch string) string {
	if batch == "" {
		return allBatches
	}
	return batch
}

func (svc *Service) AttendanceReport(ctx context.Context, period Period, batch string) (AttendanceReport, error) {
	batch = core.CleanString(batch)
	students, err := svc.students.QueryStudents(ctx, student.QueryFilter{Batch: batch}, core.DBOrdering{Field: "name", Ascending: true})
	if err != nil {
		return AttendanceReport{}, errors.Wrap(err, "querying students")
	}
	records, err := svc.attendance.QueryAttendance(ctx, attendance.Filter{Batch: batch, From: period.From, To: period.To})
	if err != nil {
		return AttendanceReport{}, errors.Wrap(err, "querying attendance")
	}

	rep := AttendanceReport{
		ReportType:       "Attendance",
		StartDate:        core.FormatDay(period.From),
		EndDate:          core.FormatDay(period.To),
		Batch:            batchLabel(batch),
		TotalStudents:    len(students),
		AttendanceByDate: make([]DateAttendance, 0),
		StudentSummary:   make([]StudentAttendance, 0),
	}

	byDate := make(map[string]*DateAttendance)
	byStudent := make(map[string]*StudentAttendance)
	for _, r := range records {
		day := core.FormatDay(r.Date)
		da, ok := byDate[day]
		if !ok {
			da = &DateAttendance{Date: day}
			byDate[day] = da
		}
		sa, ok := byStudent[r.StudentID]
		if !ok {
			sa = &StudentAttendance{StudentID: r.StudentID, Name: r.StudentName, Batch: r.Batch, statuses: make(map[string]bool)}
			byStudent[r.StudentID] = sa
		}

		if r.Status {
			da.Present++
			sa.PresentDays++
		} else {
			da.Absent++
			sa.AbsentDays++
		}
		da.Total++
		sa.TotalDays++
		sa.statuses[day] = r.Status
	}

	for _, da := range byDate {
		da.AttendanceRate = core.RoundPercent(da.Present, da.Total)
		rep.AttendanceByDate = append(rep.AttendanceByDate, *da)
	}
	sort.Slice(rep.AttendanceByDate, func(i, j int) bool {
		return rep.AttendanceByDate[i].Date < rep.AttendanceByDate[j].Date
	})

	for _, sa := range byStudent {
		sa.AttendancePercentage = core.RoundPercent(sa.PresentDays, sa.TotalDays)
		rep.StudentSummary = append(rep.StudentSummary, *sa)
	}
	sort.Slice(rep.StudentSummary, func(i, j int) bool {
		a, b := rep.StudentSummary[i], rep.StudentSummary[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.StudentID < b.StudentID
	})
	return rep, nil
}

func (svc *Service) FeeReport(ctx context.Context, period Period, batch string) (FeeReport, error) {
	batch = core.CleanString(batch)
	details, err := svc.payments.QueryPayments(ctx, fee.PaymentFilter{Batch: batch, From: period.From, To: period.To})
	if err != nil {
		return FeeReport{}, errors.Wrap(err, "querying payments")
	}

	rep := FeeReport{
		ReportType: "Fees",
		StartDate:  core.FormatDay(period.From),
		EndDate:    core.FormatDay(period.To),
		Batch:      batchLabel(batch),
		Summary: FeeReportSummary{
			TotalCollection:  total(details),
			TransactionCount: len(details),
			PaymentModes:     make([]ModeShare, 0),
		},
		DailyCollection:   dailyCollection(details),
		StudentCollection: make([]StudentCollection, 0),
		Transactions:      make([]Transaction, 0, len(details)),
	}

	for _, mt := range fee.ModeDistribution(details) {
		share := ModeShare{ModeTotal: mt}
		if rep.Summary.TotalCollection.IsPositive() {
			share.Percentage, _ = mt.Total.Mul(decimal.NewFromInt(100)).Div(rep.Summary.TotalCollection).Round(2).Float64()
		}
		rep.Summary.PaymentModes = append(rep.Summary.PaymentModes, share)
	}

	byStudent := make(map[string]*StudentCollection)
	// details are most recent first
	for i := len(details) - 1; i >= 0; i-- {
		d := details[i]
		sc, ok := byStudent[d.StudentID]
		if !ok {
			sc = &StudentCollection{StudentID: d.StudentID, Name: d.StudentName, Batch: d.Batch, TotalPaid: decimal.Zero}
			byStudent[d.StudentID] = sc
		}
		sc.TotalPaid = sc.TotalPaid.Add(d.AmountPaid)
		sc.TransactionCount++

		rep.Transactions = append(rep.Transactions, Transaction{
			ID:          d.ID,
			StudentName: d.StudentName,
			Batch:       d.Batch,
			Amount:      d.AmountPaid,
			Date:        core.FormatDay(d.PaymentDate),
			PaymentMode: d.PaymentMode,
			Notes:       d.Notes,
		})
	}

	for _, sc := range byStudent {
		rep.StudentCollection = append(rep.StudentCollection, *sc)
	}
	sort.Slice(rep.StudentCollection, func(i, j int) bool {
		a, b := rep.StudentCollection[i], rep.StudentCollection[j]
		if cmp := a.TotalPaid.Cmp(b.TotalPaid); cmp != 0 {
			return cmp > 0
		}
		return a.Name < b.Name
	})
	return rep, nil
}
