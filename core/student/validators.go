package student

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/andromeda0004/My-Tuition/core"
)

var (
	gradeTag  = "grade"
	gradeText = fmt.Sprintf("grade must be between %d and %d", MinGrade, MaxGrade)
)

// InitValidators registers the student validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)
}

// Custom Validators

func gradeValidation(fl validator.FieldLevel) bool {
	grade := fl.Field().Int()
	return grade >= MinGrade && grade <= MaxGrade
}
