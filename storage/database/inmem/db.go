// Package inmemdb implements the repositories in memory. Used in development and tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/student"
)

type txKey struct{}

// DB holds every table behind a single lock: a transaction holds the write lock until it ends.
type DB struct {
	mu         sync.RWMutex
	students   map[string]student.Student
	payments   map[string]fee.Payment
	attendance map[string]attendance.Record
}

func NewDB() *DB {
	return &DB{
		students:   make(map[string]student.Student),
		payments:   make(map[string]fee.Payment),
		attendance: make(map[string]attendance.Record),
	}
}

type snapshot struct {
	students   map[string]student.Student
	payments   map[string]fee.Payment
	attendance map[string]attendance.Record
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (db *DB) snapshot() snapshot {
	return snapshot{
		students:   copyMap(db.students),
		payments:   copyMap(db.payments),
		attendance: copyMap(db.attendance),
	}
}

func (db *DB) restore(s snapshot) {
	db.students = s.students
	db.payments = s.payments
	db.attendance = s.attendance
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// read runs fn under the read lock, unless ctx's transaction already holds the write lock.
func (db *DB) read(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		db.mu.RLock()
		defer db.mu.RUnlock()
	}
	fn()
}

// write runs fn under the write lock, unless ctx's transaction already holds it.
func (db *DB) write(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	fn()
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil)

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

// InTx serializes fn with every other write; the tables are restored if fn fails.
func (t *transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	snap := t.db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			t.db.restore(snap)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}
