package student

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
)

type FeeStructure string

const (
	FeeStructureMonthly FeeStructure = "monthly"
	FeeStructureYearly  FeeStructure = "yearly"

	MinGrade = 1
	MaxGrade = 10
	// grades from YearlyFromGrade onwards pay a yearly fee
	YearlyFromGrade = 9

	monthsPerYear = 12
)

// FeeStructureFor returns the fee structure a grade is billed with.
func FeeStructureFor(grade int) FeeStructure {
	if grade >= YearlyFromGrade {
		return FeeStructureYearly
	}
	return FeeStructureMonthly
}

// TotalFees returns the yearly amount due under the given structure.
func TotalFees(fs FeeStructure, monthlyFees, yearlyFees decimal.Decimal) decimal.Decimal {
	if fs == FeeStructureYearly {
		return yearlyFees
	}
	return monthlyFees.Mul(decimal.NewFromInt(monthsPerYear))
}

type Student struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email,omitempty"`
	Batch        string          `json:"batch"`
	Grade        int             `json:"grade"`
	FeeStructure FeeStructure    `json:"feeStructure"`
	MonthlyFees  decimal.Decimal `json:"monthlyFees"`
	YearlyFees   decimal.Decimal `json:"yearlyFees"`
	TotalFees    decimal.Decimal `json:"totalFees"`
	PaidFees     decimal.Decimal `json:"paidFees"`
	BalanceFees  decimal.Decimal `json:"balanceFees"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"` // UTC
	UpdatedAt    time.Time       `json:"updatedAt"` // UTC
}

// Recompute derives FeeStructure, TotalFees and BalanceFees from Grade, the rates and PaidFees.
// It is the only place those fields are written.
func (s *Student) Recompute() {
	s.FeeStructure = FeeStructureFor(s.Grade)
	s.TotalFees = TotalFees(s.FeeStructure, s.MonthlyFees, s.YearlyFees)
	s.BalanceFees = s.TotalFees.Sub(s.PaidFees)
}

// ApplyPayment moves PaidFees by delta (negative when a payment is voided) and recomputes.
func (s *Student) ApplyPayment(delta decimal.Decimal) {
	s.PaidFees = s.PaidFees.Add(delta)
	s.Recompute()
}

func (s Student) HasPendingFees() bool {
	return s.BalanceFees.IsPositive()
}

// IsBalanced reports whether the fee triple is consistent.
func (s Student) IsBalanced() bool {
	return s.FeeStructure == FeeStructureFor(s.Grade) &&
		s.TotalFees.Equal(TotalFees(s.FeeStructure, s.MonthlyFees, s.YearlyFees)) &&
		s.BalanceFees.Equal(s.TotalFees.Sub(s.PaidFees))
}

// FeeSnapshot is the part of a Student the ledger reports back after a mutation.
type FeeSnapshot struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Batch        string          `json:"batch"`
	FeeStructure FeeStructure    `json:"feeStructure"`
	TotalFees    decimal.Decimal `json:"totalFees"`
	PaidFees     decimal.Decimal `json:"paidFees"`
	BalanceFees  decimal.Decimal `json:"balanceFees"`
}

func (s Student) Snapshot() FeeSnapshot {
	return FeeSnapshot{
		ID:           s.ID,
		Name:         s.Name,
		Batch:        s.Batch,
		FeeStructure: s.FeeStructure,
		TotalFees:    s.TotalFees,
		PaidFees:     s.PaidFees,
		BalanceFees:  s.BalanceFees,
	}
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name        string          `json:"name" validate:"required,notblank"`
	Phone       string          `json:"phone" validate:"required,phone"`
	Email       string          `json:"email" validate:"omitempty,email"`
	Batch       string          `json:"batch" validate:"required,notblank"`
	Grade       int             `json:"grade" validate:"grade"`
	MonthlyFees decimal.Decimal `json:"monthlyFees" validate:"gte=0,money"`
	YearlyFees  decimal.Decimal `json:"yearlyFees" validate:"gte=0,money"`
	Notes       string          `json:"notes"`
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Batch = core.CleanString(ns.Batch)
	ns.Notes = core.CleanString(ns.Notes)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Derived fee fields are not part of it: they are always recomputed.
type UpdateStudent struct {
	Name        *string          `json:"name" validate:"omitempty,notblank"`
	Phone       *string          `json:"phone" validate:"omitempty,phone"`
	Email       *string          `json:"email" validate:"omitempty,email"`
	Batch       *string          `json:"batch" validate:"omitempty,notblank"`
	Grade       *int             `json:"grade" validate:"omitempty,grade"`
	MonthlyFees *decimal.Decimal `json:"monthlyFees" validate:"omitempty,gte=0,money"`
	YearlyFees  *decimal.Decimal `json:"yearlyFees" validate:"omitempty,gte=0,money"`
	Notes       *string          `json:"notes"`
}

func cleanPtr(s *string, lower ...bool) {
	if s != nil {
		*s = core.CleanString(*s, lower...)
	}
}

func (us *UpdateStudent) Clean() {
	cleanPtr(us.Name)
	cleanPtr(us.Phone)
	cleanPtr(us.Email, true /* lower */)
	cleanPtr(us.Batch)
	cleanPtr(us.Notes)
}

// Apply copies the provided fields onto s and recomputes its fees.
func (us UpdateStudent) Apply(s *Student) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Phone != nil {
		s.Phone = *us.Phone
	}
	if us.Email != nil {
		s.Email = *us.Email
	}
	if us.Batch != nil {
		s.Batch = *us.Batch
	}
	if us.Grade != nil {
		s.Grade = *us.Grade
	}
	if us.MonthlyFees != nil {
		s.MonthlyFees = *us.MonthlyFees
	}
	if us.YearlyFees != nil {
		s.YearlyFees = *us.YearlyFees
	}
	if us.Notes != nil {
		s.Notes = *us.Notes
	}
	s.Recompute()
}

type QueryFilter struct {
	Search      string `query:"search"`
	Batch       string `query:"batch"`
	Grade       int    `query:"grade"`
	PendingOnly bool   `query:"pending"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.Batch = core.CleanString(qf.Batch)
}

func (qf QueryFilter) Match(s Student) bool {
	if qf.Search != "" {
		hay := strings.ToLower(s.Name + " " + s.Phone + " " + s.Batch)
		if !strings.Contains(hay, qf.Search) {
			return false
		}
	}
	if qf.Batch != "" && s.Batch != qf.Batch {
		return false
	}
	if qf.Grade != 0 && s.Grade != qf.Grade {
		return false
	}
	if qf.PendingOnly && !s.HasPendingFees() {
		return false
	}
	return true
}
