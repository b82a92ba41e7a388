package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ptahub/core"
)

const (
	statusTag  = "attendancestatus"
	statusText = "{0} must be one of PRESENT, ABSENT or EXCUSED"
)

// InitValidators registers the attendance package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, attendanceStatusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func attendanceStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
