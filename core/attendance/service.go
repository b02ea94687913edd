package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("attendance record")
)

type (
	Repository interface {
		// UpsertAttendance writes the entries on day, creating or updating one record per student.
		UpsertAttendance(ctx context.Context, day time.Time, entries []Entry, now time.Time) (MarkResult, error)
		// QueryAttendance returns matching records, most recent day first then by student name.
		QueryAttendance(ctx context.Context, filter Filter) ([]RecordDetail, error)
		GetAttendanceByID(ctx context.Context, id string) (Record, error)
		UpdateAttendanceStatus(ctx context.Context, id string, status bool, now time.Time) (Record, error)
		DeleteAttendance(ctx context.Context, id string) error
		// MissingStudents returns the ids that do not match any student.
		MissingStudents(ctx context.Context, ids []string) ([]string, error)
	}

	Service struct {
		repo     Repository
		students student.Repository
		tx       core.Transactor
		validate *validator.Validate
	}
)

func NewService(repo Repository, students student.Repository, tx core.Transactor, validate *validator.Validate) *Service {
	return &Service{repo: repo, students: students, tx: tx, validate: validate}
}

// Mark upserts the attendance of every entry at UTC midnight of m.Date.
func (svc *Service) Mark(ctx context.Context, m Mark) (MarkResult, error) {
	m.Clean()
	if err := svc.validate.Struct(m); err != nil {
		return MarkResult{}, err
	}
	day, err := core.ParseDay(m.Date)
	if err != nil {
		return MarkResult{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}

	ids := make([]string, 0, len(m.Records))
	seen := make(map[string]bool, len(m.Records))
	var malformed []string
	for _, e := range m.Records {
		if seen[e.StudentID] {
			return MarkResult{}, core.NewConflictError(
				errors.Errorf("student %s is marked more than once for %s", e.StudentID, m.Date),
			)
		}
		seen[e.StudentID] = true
		if !core.IsValidID(e.StudentID) {
			malformed = append(malformed, e.StudentID)
			continue
		}
		ids = append(ids, e.StudentID)
	}

	var result MarkResult
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		missing, err := svc.repo.MissingStudents(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "checking students")
		}
		if missing = append(malformed, missing...); len(missing) > 0 {
			msg := fmt.Sprintf("unknown students: %s", strings.Join(missing, ", "))
			return core.NewValidationError(errors.New(msg), core.FieldError{Field: "records", Error: msg})
		}

		result, err = svc.repo.UpsertAttendance(ctx, day, m.Records, time.Now().UTC())
		return err
	})
	if err != nil {
		return MarkResult{}, err
	}
	result.Total = len(m.Records)
	return result, nil
}

func parseDayParam(field, value string) (time.Time, error) {
	day, err := core.ParseDay(value)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{
			Field: field,
			Error: "invalid date format, please use YYYY-MM-DD",
		})
	}
	return day, nil
}

// ByDate returns the attendance of the given YYYY-MM-DD day.
func (svc *Service) ByDate(ctx context.Context, date string) ([]RecordDetail, error) {
	day, err := parseDayParam("date", date)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, Filter{From: day, To: core.EndOfDay(day)})
}

// ForStudent returns the student's attendance, optionally bounded by YYYY-MM-DD days (inclusive).
func (svc *Service) ForStudent(ctx context.Context, studentID, from, to string) (StudentAttendance, error) {
	if !core.IsValidID(studentID) {
		return StudentAttendance{}, student.ErrNotFound
	}
	filter := Filter{StudentID: studentID}
	if from != "" {
		day, err := parseDayParam("startDate", from)
		if err != nil {
			return StudentAttendance{}, err
		}
		filter.From = day
	}
	if to != "" {
		day, err := parseDayParam("endDate", to)
		if err != nil {
			return StudentAttendance{}, err
		}
		filter.To = core.EndOfDay(day)
	}

	s, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return StudentAttendance{}, err
	}
	details, err := svc.repo.QueryAttendance(ctx, filter)
	if err != nil {
		return StudentAttendance{}, errors.Wrap(err, "querying attendance")
	}

	sa := StudentAttendance{
		Student: StudentInfo{ID: s.ID, Name: s.Name, Batch: s.Batch, Grade: s.Grade},
		Count:   len(details),
		Records: make([]Record, 0, len(details)),
	}
	for _, d := range details {
		if d.Status {
			sa.Present++
		}
		sa.Records = append(sa.Records, d.Record)
	}
	sa.Rate = core.RoundPercent(sa.Present, sa.Count)
	return sa, nil
}

func (svc *Service) Query(ctx context.Context, filter Filter) ([]RecordDetail, error) {
	return svc.repo.QueryAttendance(ctx, filter)
}

func (svc *Service) UpdateStatus(ctx context.Context, id string, status bool) (Record, error) {
	if !core.IsValidID(id) {
		return Record{}, ErrNotFound
	}
	return svc.repo.UpdateAttendanceStatus(ctx, id, status, time.Now().UTC())
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if !core.IsValidID(id) {
		return ErrNotFound
	}
	return svc.repo.DeleteAttendance(ctx, id)
}
