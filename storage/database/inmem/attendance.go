package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// find returns the record of studentID on day. Must be called with the lock held.
func (repo *attendanceRepository) find(studentID string, day time.Time) (attendance.Record, bool) {
	for _, r := range repo.db.attendance {
		if r.StudentID == studentID && r.Date.Equal(day) {
			return r, true
		}
	}
	return attendance.Record{}, false
}

func (repo *attendanceRepository) UpsertAttendance(
	ctx context.Context,
	day time.Time,
	entries []attendance.Entry,
	now time.Time,
) (res attendance.MarkResult, err error) {
	repo.db.write(ctx, func() {
		for _, e := range entries {
			r, ok := repo.find(e.StudentID, day)
			switch {
			case !ok:
				r = attendance.Record{
					ID:        core.NewID(),
					StudentID: e.StudentID,
					Date:      day,
					Status:    *e.Status,
					CreatedAt: now,
					UpdatedAt: now,
				}
				res.Upserted++
			case r.Status != *e.Status:
				r.Status = *e.Status
				r.UpdatedAt = now
				res.Modified++
			default:
				continue
			}
			repo.db.attendance[r.ID] = r
		}
	})
	return res, err
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter attendance.Filter) (details []attendance.RecordDetail, err error) {
	repo.db.read(ctx, func() {
		details = make([]attendance.RecordDetail, 0)
		for _, r := range repo.db.attendance {
			s, ok := repo.db.students[r.StudentID]
			if !ok || !filter.Match(r, s.Batch) {
				continue
			}
			details = append(details, attendance.RecordDetail{Record: r, StudentName: s.Name, Batch: s.Batch, Phone: s.Phone})
		}
	})

	sort.Slice(details, func(i, j int) bool {
		a, b := details[i], details[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if cmp := strings.Compare(strings.ToLower(a.StudentName), strings.ToLower(b.StudentName)); cmp != 0 {
			return cmp < 0
		}
		return a.ID < b.ID
	})
	return details, nil
}

func (repo *attendanceRepository) GetAttendanceByID(ctx context.Context, id string) (r attendance.Record, err error) {
	repo.db.read(ctx, func() {
		var ok bool
		if r, ok = repo.db.attendance[id]; !ok {
			err = attendance.ErrNotFound
		}
	})
	return r, err
}

func (repo *attendanceRepository) UpdateAttendanceStatus(ctx context.Context, id string, status bool, now time.Time) (r attendance.Record, err error) {
	repo.db.write(ctx, func() {
		var ok bool
		if r, ok = repo.db.attendance[id]; !ok {
			err = attendance.ErrNotFound
			return
		}
		r.Status = status
		r.UpdatedAt = now
		repo.db.attendance[id] = r
	})
	return r, err
}

func (repo *attendanceRepository) DeleteAttendance(ctx context.Context, id string) (err error) {
	repo.db.write(ctx, func() {
		if _, ok := repo.db.attendance[id]; !ok {
			err = attendance.ErrNotFound
			return
		}
		delete(repo.db.attendance, id)
	})
	return err
}

func (repo *attendanceRepository) MissingStudents(ctx context.Context, ids []string) (missing []string, err error) {
	repo.db.read(ctx, func() {
		for _, id := range ids {
			if _, ok := repo.db.students[id]; !ok {
				missing = append(missing, id)
			}
		}
	})
	return missing, err
}
