package student

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("student")
	ErrDuplicate = errors.New("a student with this name and phone is already enrolled in this batch")

	// OrderingFields lists the fields students may be ordered by.
	OrderingFields = []string{"name", "batch", "grade", "totalFees", "paidFees", "balanceFees", "createdAt"}

	defaultOrdering = core.DBOrdering{Field: "name", Ascending: true}

	// names at least this similar are considered the same person
	duplicateNameRatio = 0.85
)

type (
	Repository interface {
		CreateStudents(ctx context.Context, students ...Student) error
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Student.Name, Student.Phone or Student.Batch.
		QueryStudents(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// GetStudentForUpdate also locks the student until ctx's transaction ends.
		GetStudentForUpdate(ctx context.Context, id string) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// AdjustPaidFees atomically adds delta to the student's paid fees and re-derives the balance.
		AdjustPaidFees(ctx context.Context, id string, delta decimal.Decimal) (Student, error)
		// DeleteStudent also deletes the student's payments and attendance.
		DeleteStudent(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		validate *validator.Validate
		log      core.Logger
	}
)

func NewService(repo Repository, tx core.Transactor, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, log: logger}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	students, err := svc.CreateMany(ctx, []NewStudent{ns})
	if err != nil {
		return Student{}, err
	}
	return students[0], nil
}

// CreateMany validates every NewStudent first, then enrolls all of them in one transaction.
func (svc *Service) CreateMany(ctx context.Context, nss []NewStudent) ([]Student, error) {
	if len(nss) == 0 {
		return nil, core.NewValidationError(errors.New("no students provided"))
	}

	now := time.Now().UTC()
	students := make([]Student, 0, len(nss))
	for i := range nss {
		ns := nss[i]
		ns.Clean()
		if err := svc.validate.Struct(ns); err != nil {
			if len(nss) > 1 {
				return nil, errors.Wrapf(err, "student #%d", i+1)
			}
			return nil, err
		}

		s := Student{
			ID:          core.NewID(),
			Name:        ns.Name,
			Phone:       ns.Phone,
			Email:       ns.Email,
			Batch:       ns.Batch,
			Grade:       ns.Grade,
			MonthlyFees: ns.MonthlyFees,
			YearlyFees:  ns.YearlyFees,
			PaidFees:    decimal.Zero,
			Notes:       ns.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.Recompute()

		for _, other := range students {
			if IsDuplicate(s, other) {
				return nil, duplicateError(fmt.Sprintf("student #%d", i+1))
			}
		}
		students = append(students, s)
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		for _, s := range students {
			if err := svc.checkDuplicate(ctx, s); err != nil {
				return err
			}
		}
		return svc.repo.CreateStudents(ctx, students...)
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func duplicateError(prefix ...string) error {
	msg := ErrDuplicate.Error()
	if len(prefix) > 0 {
		msg = prefix[0] + ": " + msg
	}
	return core.NewValidationError(ErrDuplicate, core.FieldError{Field: "name", Error: msg})
}

// checkDuplicate rejects s if somebody else in its batch looks like the same enrollment.
func (svc *Service) checkDuplicate(ctx context.Context, s Student) error {
	batchmates, err := svc.repo.QueryStudents(ctx, QueryFilter{Batch: s.Batch})
	if err != nil {
		return errors.Wrap(err, "querying batch")
	}
	for _, other := range batchmates {
		if other.ID != s.ID && IsDuplicate(s, other) {
			return duplicateError()
		}
	}
	return nil
}

// IsDuplicate reports whether a and b look like the same person enrolled twice in a batch:
// same batch, same phone digits and similar names.
func IsDuplicate(a, b Student) bool {
	if a.Batch != b.Batch || core.Digits(a.Phone) != core.Digits(b.Phone) {
		return false
	}
	return NameSimilarity(a.Name, b.Name) >= duplicateNameRatio
}

// NameSimilarity returns a [0, 1] similarity ratio of two names, ignoring case and spacing.
func NameSimilarity(a, b string) float64 {
	split := func(s string) []string {
		return strings.Split(strings.Join(strings.Fields(strings.ToLower(s)), " "), "")
	}
	return difflib.NewMatcher(split(a), split(b)).Ratio()
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error) {
	filter.Clean()
	for _, ord := range ordering {
		if !isOrderingField(ord.Field) {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: "ordering",
				Error: fmt.Sprintf("cannot order by %q", ord.Field),
			})
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{defaultOrdering}
	}
	return svc.repo.QueryStudents(ctx, filter, ordering...)
}

func isOrderingField(field string) bool {
	for _, f := range OrderingFields {
		if f == field {
			return true
		}
	}
	return false
}

// Pending returns the students who owe fees, largest balance first.
func (svc *Service) Pending(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(
		ctx,
		QueryFilter{PendingOnly: true},
		core.DBOrdering{Field: "balanceFees"},
		defaultOrdering,
	)
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	if !core.IsValidID(id) {
		return Student{}, ErrNotFound
	}
	return svc.repo.GetStudentByID(ctx, id)
}

// Update applies us to the student and re-derives its fee structure, total and balance,
// all while holding the student's lock.
func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if !core.IsValidID(id) {
		return Student{}, ErrNotFound
	}
	us.Clean()
	if err := svc.validate.Struct(us); err != nil {
		return Student{}, err
	}

	var updated Student
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := svc.repo.GetStudentForUpdate(ctx, id)
		if err != nil {
			return err
		}

		us.Apply(&s)
		if us.Name != nil || us.Phone != nil || us.Batch != nil {
			if err = svc.checkDuplicate(ctx, s); err != nil {
				return err
			}
		}
		if s.BalanceFees.IsNegative() {
			svc.log.Warn(fmt.Sprintf("student %s has paid more than the new total fees", s.ID))
		}
		s.UpdatedAt = time.Now().UTC()

		updated, err = svc.repo.UpdateStudent(ctx, s)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if !core.IsValidID(id) {
		return ErrNotFound
	}
	return svc.repo.DeleteStudent(ctx, id)
}
