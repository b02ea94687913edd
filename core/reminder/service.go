package reminder

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/student"
)

const (
	feeReminderTemplate   = "fee_reminder"
	pendingDigestTemplate = "pending_digest"
	pendingDigestFilename = "pending_fees.csv"
)

var (
	// errors
	ErrNoPendingFees = errors.New("student has no pending fees")
	ErrNoneOwing     = core.NewNotFoundError("students with pending fees")
	ErrNoEmail       = errors.New("student has no email address")
	ErrBlankMessage  = errors.New("please provide a message")
)

type (
	Reminder struct {
		StudentID    string          `json:"studentId"`
		StudentName  string          `json:"studentName"`
		Batch        string          `json:"batch"`
		Phone        string          `json:"phone"`
		TotalFees    decimal.Decimal `json:"totalFees"`
		PaidFees     decimal.Decimal `json:"paidFees"`
		BalanceFees  decimal.Decimal `json:"balanceFees"`
		Message      string          `json:"message"`
		WhatsAppLink string          `json:"whatsappLink"`
	}

	EmailResult struct {
		Sent int `json:"sent"`
		// ids of the students without an email address
		Skipped []string `json:"skipped"`
	}

	feeReminderData struct {
		Message     string
		StudentName string
		Batch       string
		Balance     string
	}

	digestStudent struct {
		Name    string
		Batch   string
		Phone   string
		Balance string
	}

	digestData struct {
		Students []digestStudent
		Total    string
	}

	Service struct {
		students student.Repository
		mailer   core.EmailService
		conf     *core.Config
		log      core.Logger
	}
)

func NewService(students student.Repository, mailer core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{students: students, mailer: mailer, conf: conf, log: logger}
}

func (svc *Service) currency() string {
	if svc.conf.CurrencySymbol == "" {
		return DefaultCurrency
	}
	return svc.conf.CurrencySymbol
}

func (svc *Service) amount(d decimal.Decimal) string {
	return svc.currency() + d.String()
}

func (svc *Service) reminder(s student.Student, message string) Reminder {
	if message == "" {
		message = formatMessage(svc.currency(), s.Name, s.BalanceFees)
	}
	return Reminder{
		StudentID:    s.ID,
		StudentName:  s.Name,
		Batch:        s.Batch,
		Phone:        s.Phone,
		TotalFees:    s.TotalFees,
		PaidFees:     s.PaidFees,
		BalanceFees:  s.BalanceFees,
		Message:      message,
		WhatsAppLink: WhatsAppLink(s.Phone, message),
	}
}

func (svc *Service) getStudent(ctx context.Context, id string) (student.Student, error) {
	if !core.IsValidID(id) {
		return student.Student{}, student.ErrNotFound
	}
	return svc.students.GetStudentByID(ctx, id)
}

func noPendingFeesError() error {
	return core.NewValidationError(ErrNoPendingFees, core.FieldError{Field: "balanceFees", Error: ErrNoPendingFees.Error()})
}

// ForStudent returns the fee reminder of a student who owes fees.
func (svc *Service) ForStudent(ctx context.Context, id string) (Reminder, error) {
	s, err := svc.getStudent(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	if !s.HasPendingFees() {
		return Reminder{}, noPendingFeesError()
	}
	return svc.reminder(s, ""), nil
}

// Links returns the reminders of every student who owes fees, largest balance first.
func (svc *Service) Links(ctx context.Context) ([]Reminder, error) {
	students, err := svc.students.QueryStudents(ctx, student.QueryFilter{PendingOnly: true},
		core.DBOrdering{Field: "balanceFees"},
		core.DBOrdering{Field: "name", Ascending: true},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	reminders := make([]Reminder, 0, len(students))
	for _, s := range students {
		reminders = append(reminders, svc.reminder(s, ""))
	}
	return reminders, nil
}

// Pending is Links, failing with ErrNoneOwing when nobody owes fees.
func (svc *Service) Pending(ctx context.Context) ([]Reminder, error) {
	reminders, err := svc.Links(ctx)
	if err != nil {
		return nil, err
	}
	if len(reminders) == 0 {
		return nil, ErrNoneOwing
	}
	return reminders, nil
}

// Custom returns a WhatsApp link to the student's phone with an arbitrary message.
func (svc *Service) Custom(ctx context.Context, id, message string) (Reminder, error) {
	message = core.CleanString(message)
	if message == "" {
		return Reminder{}, core.NewValidationError(ErrBlankMessage, core.FieldError{Field: "message", Error: ErrBlankMessage.Error()})
	}
	s, err := svc.getStudent(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	return svc.reminder(s, message), nil
}

func (svc *Service) reminderEmail(s student.Student) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: s.Name, Address: s.Email}},
		Subject:      fmt.Sprintf("Fee reminder for %s", s.Name),
		TemplateName: feeReminderTemplate,
		TemplateData: feeReminderData{
			Message:     formatMessage(svc.currency(), s.Name, s.BalanceFees),
			StudentName: s.Name,
			Batch:       s.Batch,
			Balance:     svc.amount(s.BalanceFees),
		},
	}
}

// EmailStudent emails the fee reminder to the student's email address.
func (svc *Service) EmailStudent(ctx context.Context, id string) (Reminder, error) {
	s, err := svc.getStudent(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	if !s.HasPendingFees() {
		return Reminder{}, noPendingFeesError()
	}
	if s.Email == "" {
		return Reminder{}, core.NewValidationError(ErrNoEmail, core.FieldError{Field: "email", Error: ErrNoEmail.Error()})
	}

	svc.mailer.SendMessages(svc.reminderEmail(s))
	return svc.reminder(s, ""), nil
}

// EmailPending emails the fee reminder to every student who owes fees and has an email address.
func (svc *Service) EmailPending(ctx context.Context) (EmailResult, error) {
	students, err := svc.students.QueryStudents(ctx, student.QueryFilter{PendingOnly: true},
		core.DBOrdering{Field: "balanceFees"},
	)
	if err != nil {
		return EmailResult{}, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return EmailResult{}, ErrNoneOwing
	}

	res := EmailResult{Skipped: make([]string, 0)}
	messages := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		if s.Email == "" {
			res.Skipped = append(res.Skipped, s.ID)
			continue
		}
		messages = append(messages, svc.reminderEmail(s))
	}
	if len(messages) > 0 {
		svc.mailer.SendMessages(messages...)
	}
	res.Sent = len(messages)
	return res, nil
}

func digestRecipients(to string) ([]mail.Address, error) {
	if strings.TrimSpace(to) == "" {
		return nil, nil
	}
	addrs, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, errors.Wrap(err, "parsing digest recipients")
	}
	recipients := make([]mail.Address, 0, len(addrs))
	for _, addr := range addrs {
		recipients = append(recipients, *addr)
	}
	return recipients, nil
}

// Digest emails the list of students who owe fees to the configured recipients,
// with the list attached as CSV. Nothing is sent when nobody owes fees.
func (svc *Service) Digest(ctx context.Context) error {
	recipients, err := digestRecipients(svc.conf.Reminders.DigestTo)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		svc.log.Warn("pending fees digest has no recipients")
		return nil
	}

	reminders, err := svc.Links(ctx)
	if err != nil {
		return err
	}
	if len(reminders) == 0 {
		svc.log.Info("pending fees digest skipped: no pending fees")
		return nil
	}

	data := digestData{Students: make([]digestStudent, 0, len(reminders))}
	total := decimal.Zero
	for _, r := range reminders {
		total = total.Add(r.BalanceFees)
		data.Students = append(data.Students, digestStudent{
			Name:    r.StudentName,
			Batch:   r.Batch,
			Phone:   r.Phone,
			Balance: svc.amount(r.BalanceFees),
		})
	}
	data.Total = svc.amount(total)

	msg := &core.EmailMessage{
		To:           recipients,
		Subject:      fmt.Sprintf("%d student(s) with pending fees", len(reminders)),
		TemplateName: pendingDigestTemplate,
		TemplateData: data,
	}
	var buf bytes.Buffer
	if err = WritePendingCSV(&buf, reminders); err != nil {
		return err
	}
	if err = msg.Attach(&buf, pendingDigestFilename, "text/csv"); err != nil {
		return err
	}

	svc.mailer.SendMessages(msg)
	svc.log.Info(fmt.Sprintf("pending fees digest sent for %d student(s)", len(reminders)))
	return nil
}

// WritePendingCSV writes one line per reminder, preceded by a header.
func WritePendingCSV(w io.Writer, reminders []Reminder) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Batch", "Phone", "Total Fees", "Paid Fees", "Balance Fees", "WhatsApp Link"})
	for _, r := range reminders {
		_ = cw.Write([]string{
			r.StudentName,
			r.Batch,
			r.Phone,
			r.TotalFees.String(),
			r.PaidFees.String(),
			r.BalanceFees.String(),
			r.WhatsAppLink,
		})
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing pending fees csv")
}
