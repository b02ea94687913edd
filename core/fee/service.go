package fee

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

const recentPaymentsLimit = 5

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("payment")
	ErrExceedsBalance  = errors.New("amount paid exceeds the pending balance")
	ErrNothingToRecord = errors.New("student has no pending fees")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment) error
		GetPaymentByID(ctx context.Context, id string) (Payment, error)
		// VoidPayment tags a committed payment as voided at `at`.
		// It returns ErrNotFound if the payment does not exist or was already voided.
		VoidPayment(ctx context.Context, id string, at time.Time) (Payment, error)
		// QueryPayments returns committed payments, most recent PaymentDate first.
		QueryPayments(ctx context.Context, filter PaymentFilter) ([]PaymentDetail, error)
	}

	Service struct {
		repo     Repository
		students student.Repository
		tx       core.Transactor
		validate *validator.Validate
		log      core.Logger
	}
)

func NewService(
	repo Repository,
	students student.Repository,
	tx core.Transactor,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, students: students, tx: tx, validate: validate, log: logger}
}

// Record commits a payment: the payment row and the student's paid/balance fees
// are written in one transaction, with the student locked.
func (svc *Service) Record(ctx context.Context, np NewPayment) (Receipt, error) {
	np.Clean()
	if err := svc.validate.Struct(np); err != nil {
		return Receipt{}, err
	}
	if !core.IsValidID(np.StudentID) {
		return Receipt{}, student.ErrNotFound
	}

	now := time.Now().UTC()
	p := Payment{
		ID:          core.NewID(),
		StudentID:   np.StudentID,
		AmountPaid:  np.AmountPaid,
		PaymentDate: now,
		PaymentMode: np.PaymentMode,
		Notes:       np.Notes,
		CreatedAt:   now,
	}
	if np.PaymentDate != "" {
		date, err := core.ParseTime(np.PaymentDate)
		if err != nil { // already validated
			return Receipt{}, errors.Wrap(err, "parsing payment date")
		}
		p.PaymentDate = date
	}

	var updated student.Student
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := svc.students.GetStudentForUpdate(ctx, p.StudentID)
		if err != nil {
			return err
		}
		if !s.HasPendingFees() {
			return core.NewValidationError(ErrNothingToRecord, core.FieldError{
				Field: "amountPaid",
				Error: ErrNothingToRecord.Error(),
			})
		}
		if p.AmountPaid.GreaterThan(s.BalanceFees) {
			return core.NewValidationError(ErrExceedsBalance, core.FieldError{
				Field: "amountPaid",
				Error: fmt.Sprintf("%s (%s)", ErrExceedsBalance, s.BalanceFees),
			})
		}

		if err = svc.repo.CreatePayment(ctx, p); err != nil {
			return errors.Wrap(err, "creating payment")
		}
		updated, err = svc.students.AdjustPaidFees(ctx, s.ID, p.AmountPaid)
		return errors.Wrap(err, "adjusting paid fees")
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Payment: p, UpdatedStudent: updated.Snapshot()}, nil
}

// Void reverses a committed payment. A payment can only be voided once.
// If its student is gone, the payment is still voided and the balance step is skipped.
func (svc *Service) Void(ctx context.Context, id string) (Payment, error) {
	if !core.IsValidID(id) {
		return Payment{}, ErrNotFound
	}

	var voided Payment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := svc.repo.GetPaymentByID(ctx, id)
		if err != nil {
			return err
		}

		// lock the student before the payment, like Record does
		orphaned := false
		if _, err = svc.students.GetStudentForUpdate(ctx, p.StudentID); err != nil {
			if errors.Cause(err) != student.ErrNotFound {
				return err
			}
			orphaned = true
		}

		if voided, err = svc.repo.VoidPayment(ctx, id, time.Now().UTC()); err != nil {
			return err
		}

		if orphaned {
			svc.log.Warn(fmt.Sprintf("payment %s voided without a student: balance update skipped", id), map[string]interface{}{
				"studentId": p.StudentID,
				"amount":    p.AmountPaid.String(),
			})
			return nil
		}
		_, err = svc.students.AdjustPaidFees(ctx, p.StudentID, p.AmountPaid.Neg())
		return errors.Wrap(err, "adjusting paid fees")
	})
	if err != nil {
		return Payment{}, err
	}
	return voided, nil
}

// Statement returns the student's fees along with its payments, most recent first.
func (svc *Service) Statement(ctx context.Context, studentID string) (Statement, error) {
	if !core.IsValidID(studentID) {
		return Statement{}, student.ErrNotFound
	}
	s, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return Statement{}, err
	}
	details, err := svc.repo.QueryPayments(ctx, PaymentFilter{StudentID: studentID})
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying payments")
	}

	payments := make([]Payment, 0, len(details))
	for _, d := range details {
		payments = append(payments, d.Payment)
	}
	return Statement{Student: s.Snapshot(), Payments: payments}, nil
}

func (svc *Service) Summary(ctx context.Context) (Summary, error) {
	details, err := svc.repo.QueryPayments(ctx, PaymentFilter{})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying payments")
	}

	sum := Summary{
		TotalCollected:          decimal.Zero,
		RecentPayments:          make([]PaymentDetail, 0, recentPaymentsLimit),
		PaymentModeDistribution: ModeDistribution(details),
	}
	for i, d := range details {
		sum.TotalCollected = sum.TotalCollected.Add(d.AmountPaid)
		if i < recentPaymentsLimit {
			sum.RecentPayments = append(sum.RecentPayments, d)
		}
	}
	return sum, nil
}

// ModeDistribution totals payments per payment mode, largest total first.
func ModeDistribution(details []PaymentDetail) []ModeTotal {
	byMode := make(map[PaymentMode]*ModeTotal)
	for _, d := range details {
		mt, ok := byMode[d.PaymentMode]
		if !ok {
			mt = &ModeTotal{Mode: d.PaymentMode, Total: decimal.Zero}
			byMode[d.PaymentMode] = mt
		}
		mt.Count++
		mt.Total = mt.Total.Add(d.AmountPaid)
	}

	dist := make([]ModeTotal, 0, len(byMode))
	for _, mt := range byMode {
		dist = append(dist, *mt)
	}
	sort.Slice(dist, func(i, j int) bool {
		if cmp := dist[i].Total.Cmp(dist[j].Total); cmp != 0 {
			return cmp > 0
		}
		return dist[i].Mode < dist[j].Mode
	})
	return dist
}

// Reconcile recomputes the student's paid fees from its committed payments.
func (svc *Service) Reconcile(ctx context.Context, studentID string) (Reconciliation, error) {
	if !core.IsValidID(studentID) {
		return Reconciliation{}, student.ErrNotFound
	}

	var rec Reconciliation
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := svc.students.GetStudentForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		details, err := svc.repo.QueryPayments(ctx, PaymentFilter{StudentID: studentID})
		if err != nil {
			return errors.Wrap(err, "querying payments")
		}

		paid := decimal.Zero
		for _, d := range details {
			paid = paid.Add(d.AmountPaid)
		}
		rec.PaidBefore = s.PaidFees
		rec.PaidAfter = paid

		if rec.Changed() {
			svc.log.Warn(fmt.Sprintf("student %s paid fees reconciled from %s to %s", s.ID, s.PaidFees, paid))
			s.PaidFees = paid
			s.Recompute()
			s.UpdatedAt = time.Now().UTC()
			if s, err = svc.students.UpdateStudent(ctx, s); err != nil {
				return errors.Wrap(err, "updating student")
			}
		}
		rec.Student = s.Snapshot()
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return rec, nil
}

// ReconcileAll reconciles every student, one transaction each.
func (svc *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	students, err := svc.students.QueryStudents(ctx, student.QueryFilter{}, core.DBOrdering{Field: "name", Ascending: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	recs := make([]Reconciliation, 0, len(students))
	for _, s := range students {
		rec, err := svc.Reconcile(ctx, s.ID)
		if err != nil {
			return recs, errors.Wrapf(err, "reconciling student %s", s.ID)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
