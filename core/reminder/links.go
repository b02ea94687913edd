package reminder

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andromeda0004/My-Tuition/core"
)

const (
	DefaultCurrency = "Rs."

	whatsAppBaseURL = "https://wa.me/"
	messageFormat   = "Dear Parent, this is a reminder that %s has pending fees of %s%s. " +
		"Please arrange to clear the dues at your earliest convenience. Thank you."
)

// Message returns the fee reminder sent to the parents of a student.
func Message(name string, balance decimal.Decimal) string {
	return formatMessage(DefaultCurrency, name, balance)
}

func formatMessage(currency, name string, balance decimal.Decimal) string {
	return fmt.Sprintf(messageFormat, name, currency, balance.String())
}

// WhatsAppLink returns a wa.me deep link opening a chat with phone, prefilled with message.
// Every non-digit character of phone is dropped.
func WhatsAppLink(phone, message string) string {
	return whatsAppBaseURL + core.Digits(phone) + "?text=" + encodeURIComponent(message)
}

// encodeURIComponent escapes s like browsers do for a query component: spaces become %20.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
