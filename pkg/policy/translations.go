package policy

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

func registerCustomTranslations(validate *validator.Validate, t ut.Translator) {
	validate.RegisterTranslation("tag_key", t,
		func(ut ut.Translator) error {
			return ut.Add("tag_key", "Field '{0}' must be a valid tag key (1-128 characters, no 'aws:' prefix), got '{1}'.", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("tag_key", fe.Field(), fe.Value().(string))
			return t
		},
	)

	validate.RegisterTranslation("resource_name", t,
		func(ut ut.Translator) error {
			return ut.Add("resource_name", "'{0}' must contain only lowercase letters, digits and dashes.", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("resource_name", fe.Value().(string))
			return t
		},
	)
}
