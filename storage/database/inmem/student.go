package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudents(ctx context.Context, students ...student.Student) (err error) {
	repo.db.write(ctx, func() {
		for _, s := range students {
			if _, ok := repo.db.students[s.ID]; ok {
				err = core.NewConflictError(errors.Errorf("student %s already exists", s.ID))
				return
			}
		}
		for _, s := range students {
			repo.db.students[s.ID] = s
		}
	})
	return err
}

var studentOrderingFields = map[string]bool{
	"name": true, "batch": true, "grade": true, "totalFees": true, "paidFees": true, "balanceFees": true, "createdAt": true,
}

func compareStudents(a, b student.Student, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "batch":
		return strings.Compare(a.Batch, b.Batch)
	case "grade":
		return a.Grade - b.Grade
	case "totalFees":
		return a.TotalFees.Cmp(b.TotalFees)
	case "paidFees":
		return a.PaidFees.Cmp(b.PaidFees)
	case "balanceFees":
		return a.BalanceFees.Cmp(b.BalanceFees)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) (students []student.Student, err error) {
	for _, ord := range ordering {
		if !studentOrderingFields[ord.Field] {
			return nil, errors.Errorf("cannot order students by %q", ord.Field)
		}
	}

	repo.db.read(ctx, func() {
		students = make([]student.Student, 0, len(repo.db.students))
		for _, s := range repo.db.students {
			if filter.Match(s) {
				students = append(students, s)
			}
		}
	})

	sort.Slice(students, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareStudents(students[i], students[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (s student.Student, err error) {
	repo.db.read(ctx, func() {
		var ok bool
		if s, ok = repo.db.students[id]; !ok {
			err = student.ErrNotFound
		}
	})
	return s, err
}

// GetStudentForUpdate needs no lock of its own: transactions hold the DB's write lock.
func (repo *studentRepository) GetStudentForUpdate(ctx context.Context, id string) (student.Student, error) {
	return repo.GetStudentByID(ctx, id)
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (updated student.Student, err error) {
	repo.db.write(ctx, func() {
		if _, ok := repo.db.students[s.ID]; !ok {
			err = student.ErrNotFound
			return
		}
		repo.db.students[s.ID] = s
		updated = s
	})
	return updated, err
}

func (repo *studentRepository) AdjustPaidFees(ctx context.Context, id string, delta decimal.Decimal) (s student.Student, err error) {
	repo.db.write(ctx, func() {
		var ok bool
		if s, ok = repo.db.students[id]; !ok {
			err = student.ErrNotFound
			return
		}
		s.ApplyPayment(delta)
		s.UpdatedAt = time.Now().UTC()
		repo.db.students[id] = s
	})
	return s, err
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) (err error) {
	repo.db.write(ctx, func() {
		if _, ok := repo.db.students[id]; !ok {
			err = student.ErrNotFound
			return
		}
		delete(repo.db.students, id)
		for pid, p := range repo.db.payments {
			if p.StudentID == id {
				delete(repo.db.payments, pid)
			}
		}
		for aid, a := range repo.db.attendance {
			if a.StudentID == id {
				delete(repo.db.attendance, aid)
			}
		}
	})
	return err
}
