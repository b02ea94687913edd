package testutil

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/andromeda0004/My-Tuition/assets"
	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/fee"
	"github.com/andromeda0004/My-Tuition/core/reminder"
	"github.com/andromeda0004/My-Tuition/core/report"
	"github.com/andromeda0004/My-Tuition/core/student"
	emailsvc "github.com/andromeda0004/My-Tuition/services/email"
	inmemdb "github.com/andromeda0004/My-Tuition/storage/database/inmem"
)

// Store wires every service over a fresh in-memory database.
type Store struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Mailer     *emailsvc.Recorder

	DB         *inmemdb.DB
	Tx         core.Transactor
	Students   student.Repository
	Payments   fee.Repository
	Attendance attendance.Repository

	StudentSvc    *student.Service
	FeeSvc        *fee.Service
	AttendanceSvc *attendance.Service
	ReportSvc     *report.Service
	ReminderSvc   *reminder.Service
}

func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	student.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

func NewStore(t *testing.T) *Store {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Reminders.DigestTo = "Office <office@test.local>"
	logger := core.NewNopLogger()
	core.ParseEmailTemplates(assets.FS, conf, logger)

	validate, translator := NewValidator()
	db := inmemdb.NewDB()
	s := &Store{
		Conf:       conf,
		Validate:   validate,
		Translator: translator,
		Mailer:     emailsvc.NewRecorder(conf),
		DB:         db,
		Tx:         inmemdb.NewTransactor(db),
		Students:   inmemdb.NewStudentRepository(db),
		Payments:   inmemdb.NewPaymentRepository(db),
		Attendance: inmemdb.NewAttendanceRepository(db),
	}
	s.StudentSvc = student.NewService(s.Students, s.Tx, validate, logger)
	s.FeeSvc = fee.NewService(s.Payments, s.Students, s.Tx, validate, logger)
	s.AttendanceSvc = attendance.NewService(s.Attendance, s.Students, s.Tx, validate)
	s.ReportSvc = report.NewService(s.Students, s.Payments, s.Attendance)
	s.ReminderSvc = reminder.NewService(s.Students, s.Mailer, conf, logger)
	return s
}

// CreateStudent enrolls a student through the student service.
func CreateStudent(t *testing.T, s *Store, name, batch string, grade int, monthlyFees, yearlyFees int64, email ...string) student.Student {
	t.Helper()
	ns := student.NewStudent{
		Name:        name,
		Phone:       "+91 98765 43210",
		Batch:       batch,
		Grade:       grade,
		MonthlyFees: decimal.NewFromInt(monthlyFees),
		YearlyFees:  decimal.NewFromInt(yearlyFees),
	}
	if len(email) > 0 {
		ns.Email = email[0]
	}
	st, err := s.StudentSvc.Create(context.Background(), ns)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

// RecordPayment records a cash payment of amount for the student.
func RecordPayment(t *testing.T, s *Store, studentID string, amount int64, date ...string) fee.Receipt {
	t.Helper()
	np := fee.NewPayment{StudentID: studentID, AmountPaid: decimal.NewFromInt(amount)}
	if len(date) > 0 {
		np.PaymentDate = date[0]
	}
	rec, err := s.FeeSvc.Record(context.Background(), np)
	if err != nil {
		t.Fatalf("RecordPayment() failed: %v", err)
	}
	return rec
}

func Marshal(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	return data
}

// JSONBytesEqual compares two JSON documents, ignoring key order.
func JSONBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}
