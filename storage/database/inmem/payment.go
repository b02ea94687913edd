package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/fee"
)

type paymentRepository struct {
	db *DB
}

var _ fee.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *DB) fee.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p fee.Payment) (err error) {
	repo.db.write(ctx, func() {
		if _, ok := repo.db.students[p.StudentID]; !ok {
			err = core.NewConflictError(errors.Errorf("payment %s references an unknown student", p.ID))
			return
		}
		if _, ok := repo.db.payments[p.ID]; ok {
			err = core.NewConflictError(errors.Errorf("payment %s already exists", p.ID))
			return
		}
		repo.db.payments[p.ID] = p
	})
	return err
}

func (repo *paymentRepository) GetPaymentByID(ctx context.Context, id string) (p fee.Payment, err error) {
	repo.db.read(ctx, func() {
		var ok bool
		if p, ok = repo.db.payments[id]; !ok || p.VoidedAt != nil {
			p, err = fee.Payment{}, fee.ErrNotFound
		}
	})
	return p, err
}

func (repo *paymentRepository) VoidPayment(ctx context.Context, id string, at time.Time) (p fee.Payment, err error) {
	repo.db.write(ctx, func() {
		var ok bool
		if p, ok = repo.db.payments[id]; !ok || p.VoidedAt != nil {
			p, err = fee.Payment{}, fee.ErrNotFound
			return
		}
		p.VoidedAt = &at
		repo.db.payments[id] = p
	})
	return p, err
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter fee.PaymentFilter) (details []fee.PaymentDetail, err error) {
	repo.db.read(ctx, func() {
		details = make([]fee.PaymentDetail, 0)
		for _, p := range repo.db.payments {
			if p.VoidedAt != nil {
				continue
			}
			s, ok := repo.db.students[p.StudentID]
			if !ok || !filter.Match(p, s.Batch) {
				continue
			}
			details = append(details, fee.PaymentDetail{Payment: p, StudentName: s.Name, Batch: s.Batch})
		}
	})

	sort.Slice(details, func(i, j int) bool {
		a, b := details[i], details[j]
		if !a.PaymentDate.Equal(b.PaymentDate) {
			return a.PaymentDate.After(b.PaymentDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if filter.Limit > 0 && len(details) > filter.Limit {
		details = details[:filter.Limit]
	}
	return details, nil
}
