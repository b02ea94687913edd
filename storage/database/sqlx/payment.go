package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/andromeda0004/My-Tuition/core/fee"
)

const paymentColumns = "id, student_id, amount, payment_date, payment_mode, notes, created_at, voided_at"

type paymentRow struct {
	ID          string          `db:"id"`
	StudentID   string          `db:"student_id"`
	Amount      decimal.Decimal `db:"amount"`
	PaymentDate time.Time       `db:"payment_date"`
	PaymentMode string          `db:"payment_mode"`
	Notes       string          `db:"notes"`
	CreatedAt   time.Time       `db:"created_at"`
	VoidedAt    null.Time       `db:"voided_at"`
}

type paymentDetailRow struct {
	paymentRow
	StudentName string `db:"student_name"`
	Batch       string `db:"batch"`
}

func (r paymentRow) toPayment() fee.Payment {
	p := fee.Payment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		AmountPaid:  r.Amount,
		PaymentDate: r.PaymentDate.UTC(),
		PaymentMode: fee.PaymentMode(r.PaymentMode),
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.VoidedAt.Valid {
		at := r.VoidedAt.Time.UTC()
		p.VoidedAt = &at
	}
	return p
}

type paymentRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *sqlx.DB) fee.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p fee.Payment) error {
	q := "INSERT INTO payments (" + paymentColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)"
	_, err := conn(ctx, repo.db).ExecContext(ctx, q,
		p.ID, p.StudentID, p.AmountPaid, p.PaymentDate, string(p.PaymentMode), p.Notes, p.CreatedAt,
	)
	return errors.Wrap(mapError(err, fee.ErrNotFound), "inserting payment")
}

func (repo *paymentRepository) GetPaymentByID(ctx context.Context, id string) (fee.Payment, error) {
	q := "SELECT " + paymentColumns + " FROM payments WHERE id = $1 AND voided_at IS NULL"
	var row paymentRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		return fee.Payment{}, mapError(err, fee.ErrNotFound)
	}
	return row.toPayment(), nil
}

func (repo *paymentRepository) VoidPayment(ctx context.Context, id string, at time.Time) (fee.Payment, error) {
	q := "UPDATE payments SET voided_at = $2 WHERE id = $1 AND voided_at IS NULL RETURNING " + paymentColumns
	var row paymentRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, id, at); err != nil {
		return fee.Payment{}, mapError(err, fee.ErrNotFound)
	}
	return row.toPayment(), nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter fee.PaymentFilter) ([]fee.PaymentDetail, error) {
	var a args
	where := []string{"p.voided_at IS NULL"}
	if filter.StudentID != "" {
		where = append(where, "p.student_id = "+a.add(filter.StudentID))
	}
	if filter.Batch != "" {
		where = append(where, "s.batch = "+a.add(filter.Batch))
	}
	if !filter.From.IsZero() {
		where = append(where, "p.payment_date >= "+a.add(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "p.payment_date <= "+a.add(filter.To))
	}

	q := `SELECT p.id, p.student_id, p.amount, p.payment_date, p.payment_mode, p.notes, p.created_at, p.voided_at,
		s.name AS student_name, s.batch
		FROM payments p
		JOIN students s ON s.id = p.student_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY p.payment_date DESC, p.created_at DESC, p.id`
	if filter.Limit > 0 {
		q += " LIMIT " + a.add(filter.Limit)
	}

	var rows []paymentDetailRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, a...); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	details := make([]fee.PaymentDetail, 0, len(rows))
	for _, r := range rows {
		details = append(details, fee.PaymentDetail{
			Payment:     r.toPayment(),
			StudentName: r.StudentName,
			Batch:       r.Batch,
		})
	}
	return details, nil
}
