package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/andromeda0004/My-Tuition/core"
)

var (
	paymentModeTag  = "paymentmode"
	paymentModeText = "payment mode must be one of cash, UPI, bank, check or other"
)

// InitValidators registers the fee validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentModeTag, paymentModeValidation)
	core.RegisterCustomTranslation(validate, translator, paymentModeTag, paymentModeText)
}

func paymentModeValidation(fl validator.FieldLevel) bool {
	return PaymentMode(fl.Field().String()).IsValid()
}
