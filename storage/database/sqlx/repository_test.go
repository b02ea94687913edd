package sqlxrepos_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/student"
	"github.com/andromeda0004/My-Tuition/storage/database"
	sqlxrepos "github.com/andromeda0004/My-Tuition/storage/database/sqlx"
	testutil "github.com/andromeda0004/My-Tuition/tests"
)

type services struct {
	students   *student.Service
	fees       *fee.Service
	attendance *attendance.Service
}

// prepareDB opens and migrates the database of TEST_DATABASE_URL, then empties it.
func prepareDB(t *testing.T) (*sqlx.DB, services) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	_, err = db.Exec("TRUNCATE attendance, payments, students")
	require.NoError(t, err)

	validate, _ := testutil.NewValidator()
	logger := core.NewNopLogger()
	tx := sqlxrepos.NewTransactor(db)
	students := sqlxrepos.NewStudentRepository(db)
	return db, services{
		students:   student.NewService(students, tx, validate, logger),
		fees:       fee.NewService(sqlxrepos.NewPaymentRepository(db), students, tx, validate, logger),
		attendance: attendance.NewService(sqlxrepos.NewAttendanceRepository(db), students, tx, validate),
	}
}

func newStudent(name string, grade int, monthly, yearly int64) student.NewStudent {
	return student.NewStudent{
		Name:        name,
		Phone:       "+91 98765 43210",
		Batch:       "Morning",
		Grade:       grade,
		MonthlyFees: decimal.NewFromInt(monthly),
		YearlyFees:  decimal.NewFromInt(yearly),
	}
}

func TestLedger(t *testing.T) {
	db, svc := prepareDB(t)
	ctx := context.Background()

	s, err := svc.students.Create(ctx, newStudent("Asha Rao", 5, 1000, 0))
	require.NoError(t, err)

	rec, err := svc.fees.Record(ctx, fee.NewPayment{StudentID: s.ID, AmountPaid: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.True(t, rec.UpdatedStudent.BalanceFees.Equal(decimal.NewFromInt(7000)))

	// concurrent payments serialize on the student row
	var wg sync.WaitGroup
	for _, amount := range []int64{100, 200} {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := svc.fees.Record(ctx, fee.NewPayment{StudentID: s.ID, AmountPaid: decimal.NewFromInt(amount)})
			assert.NoError(t, err)
		}(amount)
	}
	wg.Wait()

	got, err := svc.students.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidFees.Equal(decimal.NewFromInt(5300)))
	assert.True(t, got.IsBalanced())

	_, err = svc.fees.Void(ctx, rec.Payment.ID)
	require.NoError(t, err)
	_, err = svc.fees.Void(ctx, rec.Payment.ID)
	assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

	got, err = svc.students.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidFees.Equal(decimal.NewFromInt(300)))
	assert.True(t, got.BalanceFees.Equal(decimal.NewFromInt(11700)))

	_, err = svc.fees.Record(ctx, fee.NewPayment{StudentID: s.ID, AmountPaid: decimal.NewFromInt(11701)})
	assert.True(t, core.IsValidationError(err))

	// the voided payment stays in the table
	var rows int
	require.NoError(t, db.Get(&rows, "SELECT count(*) FROM payments WHERE student_id = $1", s.ID))
	assert.Equal(t, 3, rows)

	require.NoError(t, svc.students.Delete(ctx, s.ID))
	require.NoError(t, db.Get(&rows, "SELECT count(*) FROM payments WHERE student_id = $1", s.ID))
	assert.Zero(t, rows)
}

func TestAttendance(t *testing.T) {
	_, svc := prepareDB(t)
	ctx := context.Background()

	s, err := svc.students.Create(ctx, newStudent("Asha Rao", 9, 0, 15000))
	require.NoError(t, err)
	present, absent := true, false

	res, err := svc.attendance.Mark(ctx, attendance.Mark{Date: "2024-05-02", Records: []attendance.Entry{{StudentID: s.ID, Status: &present}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)

	res, err = svc.attendance.Mark(ctx, attendance.Mark{Date: "2024-05-02", Records: []attendance.Entry{{StudentID: s.ID, Status: &absent}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modified)

	records, err := svc.attendance.ByDate(ctx, "2024-05-02")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Status)
	assert.Equal(t, "Asha Rao", records[0].StudentName)
}
