package core

import "context"

// Transactor runs a unit of work atomically. Repositories called with the ctx handed
// to fn take part in the same transaction; any error returned by fn rolls back every
// write made through it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
