package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
)

const attendanceColumns = "id, student_id, date, status, created_at, updated_at"

type attendanceRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	Date      time.Time `db:"date"`
	Status    bool      `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type attendanceDetailRow struct {
	attendanceRow
	StudentName string `db:"student_name"`
	Batch       string `db:"batch"`
	Phone       string `db:"phone"`
}

func (r attendanceRow) toRecord() attendance.Record {
	return attendance.Record{
		ID:        r.ID,
		StudentID: r.StudentID,
		Date:      r.Date.UTC(),
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// UpsertAttendance only touches records whose status changes; `xmax = 0` tells inserted rows from updated ones.
func (repo *attendanceRepository) UpsertAttendance(
	ctx context.Context,
	day time.Time,
	entries []attendance.Entry,
	now time.Time,
) (attendance.MarkResult, error) {
	q := `INSERT INTO attendance (` + attendanceColumns + `) VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (student_id, date) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		WHERE attendance.status IS DISTINCT FROM EXCLUDED.status
		RETURNING (xmax = 0) AS inserted`

	var res attendance.MarkResult
	db := conn(ctx, repo.db)
	for _, e := range entries {
		var inserted bool
		err := db.QueryRowxContext(ctx, q, core.NewID(), e.StudentID, day, *e.Status, now).Scan(&inserted)
		switch {
		case err == sql.ErrNoRows: // unchanged
		case err != nil:
			return attendance.MarkResult{}, errors.Wrapf(mapError(err, attendance.ErrNotFound), "upserting attendance of %s", e.StudentID)
		case inserted:
			res.Upserted++
		default:
			res.Modified++
		}
	}
	return res, nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter attendance.Filter) ([]attendance.RecordDetail, error) {
	var (
		a     args
		where []string
	)
	if filter.StudentID != "" {
		where = append(where, "a.student_id = "+a.add(filter.StudentID))
	}
	if filter.Batch != "" {
		where = append(where, "s.batch = "+a.add(filter.Batch))
	}
	if !filter.From.IsZero() {
		where = append(where, "a.date >= "+a.add(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "a.date <= "+a.add(filter.To))
	}

	q := `SELECT a.id, a.student_id, a.date, a.status, a.created_at, a.updated_at,
		s.name AS student_name, s.batch, s.phone
		FROM attendance a
		JOIN students s ON s.id = a.student_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY a.date DESC, lower(s.name), a.id"

	var rows []attendanceDetailRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, a...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	details := make([]attendance.RecordDetail, 0, len(rows))
	for _, r := range rows {
		details = append(details, attendance.RecordDetail{
			Record:      r.toRecord(),
			StudentName: r.StudentName,
			Batch:       r.Batch,
			Phone:       r.Phone,
		})
	}
	return details, nil
}

func (repo *attendanceRepository) GetAttendanceByID(ctx context.Context, id string) (attendance.Record, error) {
	var row attendanceRow
	q := "SELECT " + attendanceColumns + " FROM attendance WHERE id = $1"
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		return attendance.Record{}, mapError(err, attendance.ErrNotFound)
	}
	return row.toRecord(), nil
}

func (repo *attendanceRepository) UpdateAttendanceStatus(ctx context.Context, id string, status bool, now time.Time) (attendance.Record, error) {
	var row attendanceRow
	q := "UPDATE attendance SET status = $2, updated_at = $3 WHERE id = $1 RETURNING " + attendanceColumns
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, id, status, now); err != nil {
		return attendance.Record{}, mapError(err, attendance.ErrNotFound)
	}
	return row.toRecord(), nil
}

func (repo *attendanceRepository) DeleteAttendance(ctx context.Context, id string) error {
	res, err := conn(ctx, repo.db).ExecContext(ctx, "DELETE FROM attendance WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return checkAffected(res, attendance.ErrNotFound)
}

func (repo *attendanceRepository) MissingStudents(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT u.id::text FROM unnest($1::uuid[]) AS u(id)
		LEFT JOIN students s ON s.id = u.id
		WHERE s.id IS NULL`
	var missing []string
	if err := conn(ctx, repo.db).SelectContext(ctx, &missing, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "checking students")
	}
	return missing, nil
}
