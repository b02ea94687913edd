package reminder_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/reminder"
	testutil "github.com/andromeda0004/My-Tuition/tests"
)

func TestMessage(t *testing.T) {
	got := reminder.Message("Asha Rao", decimal.NewFromInt(7000))
	want := "Dear Parent, this is a reminder that Asha Rao has pending fees of Rs.7000. " +
		"Please arrange to clear the dues at your earliest convenience. Thank you."
	assert.Equal(t, want, got)
}

func TestWhatsAppLink(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		message string
		want    string
	}{
		{name: "plain", phone: "9876543210", message: "hi", want: "https://wa.me/9876543210?text=hi"},
		{name: "formatted phone", phone: "+91 (98765) 43-210", message: "hi", want: "https://wa.me/919876543210?text=hi"},
		{name: "spaces", phone: "9876543210", message: "pay now", want: "https://wa.me/9876543210?text=pay%20now"},
		{name: "reserved chars", phone: "9876543210", message: "Rs.7000 & more?", want: "https://wa.me/9876543210?text=Rs.7000%20%26%20more%3F"},
		{name: "plus sign", phone: "9876543210", message: "1+1", want: "https://wa.me/9876543210?text=1%2B1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reminder.WhatsAppLink(tt.phone, tt.message))
		})
	}
}

func TestService_Reminders(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	none, err := store.ReminderSvc.Links(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = store.ReminderSvc.Pending(ctx)
	assert.True(t, core.IsNotFound(err))

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	ravi := testutil.CreateStudent(t, store, "Ravi Kumar", "Morning", 9, 0, 20000)
	meena := testutil.CreateStudent(t, store, "Meena Iyer", "Evening", 3, 100, 0)
	testutil.RecordPayment(t, store, meena.ID, 1200)

	pending, err := store.ReminderSvc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ravi.ID, pending[0].StudentID)
	assert.Equal(t, asha.ID, pending[1].StudentID)
	assert.Equal(t, reminder.Message("Ravi Kumar", decimal.NewFromInt(20000)), pending[0].Message)
	assert.Equal(t, reminder.WhatsAppLink(ravi.Phone, pending[0].Message), pending[0].WhatsAppLink)

	r, err := store.ReminderSvc.ForStudent(ctx, asha.ID)
	require.NoError(t, err)
	assert.True(t, r.BalanceFees.Equal(decimal.NewFromInt(12000)))

	_, err = store.ReminderSvc.ForStudent(ctx, meena.ID)
	assert.True(t, core.IsValidationError(err))
	_, err = store.ReminderSvc.ForStudent(ctx, core.NewID())
	assert.True(t, core.IsNotFound(err))

	r, err = store.ReminderSvc.Custom(ctx, meena.ID, "  Class cancelled tomorrow ")
	require.NoError(t, err)
	assert.Equal(t, "Class cancelled tomorrow", r.Message)
	assert.Contains(t, r.WhatsAppLink, "text=Class%20cancelled%20tomorrow")

	_, err = store.ReminderSvc.Custom(ctx, meena.ID, "   ")
	assert.True(t, core.IsValidationError(err))
}

func TestService_Email(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0, "asha.parent@test.local")
	ravi := testutil.CreateStudent(t, store, "Ravi Kumar", "Morning", 9, 0, 20000)

	_, err := store.ReminderSvc.EmailStudent(ctx, ravi.ID)
	assert.True(t, core.IsValidationError(err), "no email address")
	assert.Empty(t, store.Mailer.Sent())

	_, err = store.ReminderSvc.EmailStudent(ctx, asha.ID)
	require.NoError(t, err)
	sent := store.Mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "asha.parent@test.local", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Asha Rao has pending fees of Rs.12000")
	assert.Contains(t, sent[0].HTMLContent, "Asha Rao")

	store.Mailer.Reset()
	res, err := store.ReminderSvc.EmailPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, []string{ravi.ID}, res.Skipped)
	assert.Len(t, store.Mailer.Sent(), 1)
}

func TestService_Digest(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	// nobody owes anything yet
	require.NoError(t, store.ReminderSvc.Digest(ctx))
	assert.Empty(t, store.Mailer.Sent())

	testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	testutil.CreateStudent(t, store, "Ravi Kumar", "Evening", 9, 0, 20000)

	require.NoError(t, store.ReminderSvc.Digest(ctx))
	sent := store.Mailer.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "office@test.local", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Ravi Kumar")
	assert.Contains(t, msg.TextContent, "Rs.32000")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "pending_fees.csv", msg.Attachments[0].Filename)
	raw, err := base64.StdEncoding.DecodeString(msg.Attachments[0].Content.String())
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ravi Kumar", rows[1][0])
	assert.Equal(t, "20000", rows[1][5])

	t.Run("no recipients", func(t *testing.T) {
		store.Mailer.Reset()
		store.Conf.Reminders.DigestTo = ""
		require.NoError(t, store.ReminderSvc.Digest(ctx))
		assert.Empty(t, store.Mailer.Sent())
	})
}
