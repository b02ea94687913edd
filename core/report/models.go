package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core/fee"
)

const allBatches = "All"

type (
	Defaulter struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Batch       string          `json:"batch"`
		Phone       string          `json:"phone"`
		BalanceFees decimal.Decimal `json:"balanceFees"`
	}

	Defaulters struct {
		Count    int         `json:"count"`
		Students []Defaulter `json:"students"`
	}

	Absentee struct {
		ID        string `json:"id"`
		StudentID string `json:"studentId"`
		Name      string `json:"name"`
		Batch     string `json:"batch"`
	}

	DayAttendance struct {
		Total          int        `json:"total"`
		Present        int        `json:"present"`
		Absent         int        `json:"absent"`
		Absentees      []Absentee `json:"absentees"`
		AttendanceRate float64    `json:"attendanceRate"`
	}

	Financials struct {
		RecentTransactions []fee.PaymentDetail `json:"recentTransactions"`
		MonthlyCollection  decimal.Decimal     `json:"monthlyCollection"`
	}

	BatchCount struct {
		Batch string `json:"batch"`
		Count int    `json:"count"`
	}

	Dashboard struct {
		TotalStudents     int           `json:"totalStudents"`
		FeeDefaulters     Defaulters    `json:"feeDefaulters"`
		TodayAttendance   DayAttendance `json:"todayAttendance"`
		Financials        Financials    `json:"financials"`
		BatchDistribution []BatchCount  `json:"batchDistribution"`
	}

	BatchStatistics struct {
		Batch         string          `json:"batch"`
		StudentCount  int             `json:"studentCount"`
		TotalFees     decimal.Decimal `json:"totalFees"`
		CollectedFees decimal.Decimal `json:"collectedFees"`
		PendingFees   decimal.Decimal `json:"pendingFees"`
	}

	DailyTotal struct {
		Date  string          `json:"date"`
		Total decimal.Decimal `json:"total"`
		Count int             `json:"count"`
	}

	FeeStatisticsSummary struct {
		StartDate             time.Time       `json:"startDate"`
		EndDate               time.Time       `json:"endDate"`
		TotalAmount           decimal.Decimal `json:"totalAmount"`
		TotalTransactions     int             `json:"totalTransactions"`
		AveragePerTransaction decimal.Decimal `json:"averagePerTransaction"`
	}

	FeeStatistics struct {
		Summary          FeeStatisticsSummary `json:"summary"`
		DailyCollection  []DailyTotal         `json:"dailyCollection"`
		PaymentModeStats []fee.ModeTotal      `json:"paymentModeStats"`
	}
)

// Period is an inclusive range of UTC days.
type Period struct {
	From time.Time // UTC midnight
	To   time.Time // last instant of the day
}

type (
	DateAttendance struct {
		Date           string  `json:"date"`
		Present        int     `json:"present"`
		Absent         int     `json:"absent"`
		Total          int     `json:"total"`
		AttendanceRate float64 `json:"attendanceRate"`
	}

	StudentAttendance struct {
		StudentID            string  `json:"studentId"`
		Name                 string  `json:"name"`
		Batch                string  `json:"batch"`
		PresentDays          int     `json:"presentDays"`
		AbsentDays           int     `json:"absentDays"`
		TotalDays            int     `json:"totalDays"`
		AttendancePercentage float64 `json:"attendancePercentage"`

		// day (YYYY-MM-DD) => present
		statuses map[string]bool
	}

	AttendanceReport struct {
		ReportType       string              `json:"reportType"`
		StartDate        string              `json:"startDate"`
		EndDate          string              `json:"endDate"`
		Batch            string              `json:"batch"`
		TotalStudents    int                 `json:"totalStudents"`
		AttendanceByDate []DateAttendance    `json:"attendanceByDate"`
		StudentSummary   []StudentAttendance `json:"studentSummary"`
	}
)

type (
	ModeShare struct {
		fee.ModeTotal
		Percentage float64 `json:"percentage"`
	}

	FeeReportSummary struct {
		TotalCollection  decimal.Decimal `json:"totalCollection"`
		TransactionCount int             `json:"transactionCount"`
		PaymentModes     []ModeShare     `json:"paymentModes"`
	}

	StudentCollection struct {
		StudentID        string          `json:"studentId"`
		Name             string          `json:"name"`
		Batch            string          `json:"batch"`
		TotalPaid        decimal.Decimal `json:"totalPaid"`
		TransactionCount int             `json:"transactionCount"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		StudentName string          `json:"studentName"`
		Batch       string          `json:"batch"`
		Amount      decimal.Decimal `json:"amount"`
		Date        string          `json:"date"`
		PaymentMode fee.PaymentMode `json:"paymentMode"`
		Notes       string          `json:"notes"`
	}

	FeeReport struct {
		ReportType        string              `json:"reportType"`
		StartDate         string              `json:"startDate"`
		EndDate           string              `json:"endDate"`
		Batch             string              `json:"batch"`
		Summary           FeeReportSummary    `json:"summary"`
		DailyCollection   []DailyTotal        `json:"dailyCollection"`
		StudentCollection []StudentCollection `json:"studentCollection"`
		// oldest first
		Transactions []Transaction `json:"transactions"`
	}
)
