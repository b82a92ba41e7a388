package contribution

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ptahub/core"
)

const (
	typeTag  = "contributiontype"
	typeText = "{0} must be one of CASH or INKIND"
)

// InitValidators registers the contribution package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, contributionTypeValidation)
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)
}

func contributionTypeValidation(fl validator.FieldLevel) bool {
	return Type(fl.Field().String()).Valid()
}
