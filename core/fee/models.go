package fee

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

type PaymentMode string

const (
	ModeCash  PaymentMode = "cash"
	ModeUPI   PaymentMode = "UPI"
	ModeBank  PaymentMode = "bank"
	ModeCheck PaymentMode = "check"
	ModeOther PaymentMode = "other"
)

var PaymentModes = []PaymentMode{ModeCash, ModeUPI, ModeBank, ModeCheck, ModeOther}

func (m PaymentMode) IsValid() bool {
	for _, mode := range PaymentModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Payment is a committed fee transaction. Voided payments never leave the storage layer.
type Payment struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"studentId"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	PaymentDate time.Time       `json:"paymentDate"`
	PaymentMode PaymentMode     `json:"paymentMode"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	VoidedAt    *time.Time      `json:"voidedAt,omitempty"`
}

// PaymentDetail is a Payment along with its student's name and batch.
type PaymentDetail struct {
	Payment
	StudentName string `json:"studentName"`
	Batch       string `json:"batch"`
}

// NewPayment contains information needed to record a Payment.
type NewPayment struct {
	StudentID   string          `json:"studentId" validate:"required"`
	AmountPaid  decimal.Decimal `json:"amountPaid" validate:"gt=0,money"`
	PaymentDate string          `json:"paymentDate" validate:"omitempty,isotime"`
	PaymentMode PaymentMode     `json:"paymentMode" validate:"omitempty,paymentmode"`
	Notes       string          `json:"notes"`
}

func (np *NewPayment) Clean() {
	np.StudentID = core.CleanString(np.StudentID)
	np.PaymentDate = core.CleanString(np.PaymentDate)
	np.Notes = core.CleanString(np.Notes)
	if np.PaymentMode == "" {
		np.PaymentMode = ModeCash
	}
}

type PaymentFilter struct {
	StudentID string
	Batch     string
	From      time.Time
	To        time.Time
	// Limit caps the number of payments returned (0 means no limit)
	Limit int
}

func (pf PaymentFilter) Match(p Payment, batch string) bool {
	if pf.StudentID != "" && p.StudentID != pf.StudentID {
		return false
	}
	if pf.Batch != "" && batch != pf.Batch {
		return false
	}
	if !pf.From.IsZero() && p.PaymentDate.Before(pf.From) {
		return false
	}
	if !pf.To.IsZero() && p.PaymentDate.After(pf.To) {
		return false
	}
	return true
}

// Receipt is the outcome of recording a payment.
type Receipt struct {
	Payment        Payment             `json:"payment"`
	UpdatedStudent student.FeeSnapshot `json:"updatedStudent"`
}

type Statement struct {
	Student  student.FeeSnapshot `json:"student"`
	Payments []Payment           `json:"payments"`
}

type ModeTotal struct {
	Mode  PaymentMode     `json:"mode"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type Summary struct {
	TotalCollected          decimal.Decimal `json:"totalCollected"`
	RecentPayments          []PaymentDetail `json:"recentPayments"`
	PaymentModeDistribution []ModeTotal     `json:"paymentModeDistribution"`
}

// Reconciliation reports the paid fees of a student before and after being recomputed from its payments.
type Reconciliation struct {
	Student    student.FeeSnapshot `json:"student"`
	PaidBefore decimal.Decimal     `json:"paidBefore"`
	PaidAfter  decimal.Decimal     `json:"paidAfter"`
}

func (r Reconciliation) Changed() bool {
	return !r.PaidBefore.Equal(r.PaidAfter)
}
