package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

const studentColumns = `id, name, phone, email, batch, grade, fee_structure, monthly_fees, yearly_fees,
	total_fees, paid_fees, balance_fees, notes, created_at, updated_at`

// API field => column
var studentOrderingColumns = map[string]string{
	"name":        "lower(name)",
	"batch":       "batch",
	"grade":       "grade",
	"totalFees":   "total_fees",
	"paidFees":    "paid_fees",
	"balanceFees": "balance_fees",
	"createdAt":   "created_at",
}

type studentRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Phone        string          `db:"phone"`
	Email        null.String     `db:"email"`
	Batch        string          `db:"batch"`
	Grade        int             `db:"grade"`
	FeeStructure string          `db:"fee_structure"`
	MonthlyFees  decimal.Decimal `db:"monthly_fees"`
	YearlyFees   decimal.Decimal `db:"yearly_fees"`
	TotalFees    decimal.Decimal `db:"total_fees"`
	PaidFees     decimal.Decimal `db:"paid_fees"`
	BalanceFees  decimal.Decimal `db:"balance_fees"`
	Notes        null.String     `db:"notes"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func newStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:           s.ID,
		Name:         s.Name,
		Phone:        s.Phone,
		Email:        null.NewString(s.Email, s.Email != ""),
		Batch:        s.Batch,
		Grade:        s.Grade,
		FeeStructure: string(s.FeeStructure),
		MonthlyFees:  s.MonthlyFees,
		YearlyFees:   s.YearlyFees,
		TotalFees:    s.TotalFees,
		PaidFees:     s.PaidFees,
		BalanceFees:  s.BalanceFees,
		Notes:        null.NewString(s.Notes, s.Notes != ""),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (r studentRow) toStudent() student.Student {
	return student.Student{
		ID:           r.ID,
		Name:         r.Name,
		Phone:        r.Phone,
		Email:        r.Email.String,
		Batch:        r.Batch,
		Grade:        r.Grade,
		FeeStructure: student.FeeStructure(r.FeeStructure),
		MonthlyFees:  r.MonthlyFees,
		YearlyFees:   r.YearlyFees,
		TotalFees:    r.TotalFees,
		PaidFees:     r.PaidFees,
		BalanceFees:  r.BalanceFees,
		Notes:        r.Notes.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudents(ctx context.Context, students ...student.Student) error {
	q := `INSERT INTO students (` + studentColumns + `) VALUES (
		:id, :name, :phone, :email, :batch, :grade, :fee_structure, :monthly_fees, :yearly_fees,
		:total_fees, :paid_fees, :balance_fees, :notes, :created_at, :updated_at)`

	for _, s := range students {
		if _, err := sqlx.NamedExecContext(ctx, conn(ctx, repo.db), q, newStudentRow(s)); err != nil {
			return errors.Wrapf(mapError(err, student.ErrNotFound), "inserting student %s", s.ID)
		}
	}
	return nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	var (
		a     args
		where []string
	)
	if filter.Search != "" {
		p := a.add(likePattern(strings.ToLower(filter.Search)))
		where = append(where, "(lower(name) LIKE "+p+" OR phone LIKE "+p+" OR lower(batch) LIKE "+p+")")
	}
	if filter.Batch != "" {
		where = append(where, "batch = "+a.add(filter.Batch))
	}
	if filter.Grade != 0 {
		where = append(where, "grade = "+a.add(filter.Grade))
	}
	if filter.PendingOnly {
		where = append(where, "balance_fees > 0")
	}

	q := "SELECT " + studentColumns + " FROM students"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := studentOrderingColumns[ord.Field]
		if !ok {
			return nil, errors.Errorf("cannot order students by %q", ord.Field)
		}
		orderBy = append(orderBy, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	orderBy = append(orderBy, "id ASC")
	q += " ORDER BY " + strings.Join(orderBy, ", ")

	var rows []studentRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, a...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

func (repo *studentRepository) get(ctx context.Context, id string, lock bool) (student.Student, error) {
	q := "SELECT " + studentColumns + " FROM students WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var row studentRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		return student.Student{}, mapError(err, student.ErrNotFound)
	}
	return row.toStudent(), nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	return repo.get(ctx, id, false)
}

func (repo *studentRepository) GetStudentForUpdate(ctx context.Context, id string) (student.Student, error) {
	return repo.get(ctx, id, true)
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	q := `UPDATE students SET
		name = $2, phone = $3, email = $4, batch = $5, grade = $6, fee_structure = $7,
		monthly_fees = $8, yearly_fees = $9, total_fees = $10, paid_fees = $11, balance_fees = $12,
		notes = $13, updated_at = $14
		WHERE id = $1
		RETURNING ` + studentColumns

	r := newStudentRow(s)
	var row studentRow
	err := conn(ctx, repo.db).GetContext(ctx, &row, q,
		r.ID, r.Name, r.Phone, r.Email, r.Batch, r.Grade, r.FeeStructure,
		r.MonthlyFees, r.YearlyFees, r.TotalFees, r.PaidFees, r.BalanceFees,
		r.Notes, r.UpdatedAt,
	)
	if err != nil {
		return student.Student{}, mapError(err, student.ErrNotFound)
	}
	return row.toStudent(), nil
}

// AdjustPaidFees increments paid_fees in the UPDATE itself so that concurrent adjustments never lose one another.
func (repo *studentRepository) AdjustPaidFees(ctx context.Context, id string, delta decimal.Decimal) (student.Student, error) {
	q := `UPDATE students SET
		paid_fees = paid_fees + $2,
		balance_fees = total_fees - (paid_fees + $2),
		updated_at = $3
		WHERE id = $1
		RETURNING ` + studentColumns

	var row studentRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, id, delta, time.Now().UTC()); err != nil {
		return student.Student{}, mapError(err, student.ErrNotFound)
	}
	return row.toStudent(), nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := conn(ctx, repo.db).ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return checkAffected(res, student.ErrNotFound)
}
