package policy

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/eliran89c/tag-janitor/pkg/policy/types"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const maxTagKeyLength = 128

var (
	validate *validator.Validate
	uni      *ut.UniversalTranslator
	trans    ut.Translator

	tagKeyPattern       = regexp.MustCompile(`^[\p{L}\p{Z}\p{N}_.:/=+\-@]+$`)
	resourceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// ParserErrors represents a collection of policy validation errors
type ParserErrors struct {
	Messages []string
}

func init() {
	validate = validator.New()

	enLocale := en.New()
	uni = ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		yamlTag := fld.Tag.Get("yaml")

		if yamlTag == "" {
			return fld.Name
		}

		parts := strings.SplitN(yamlTag, ",", 2)
		name := parts[0]

		if name == "-" {
			return fld.Name
		}

		return name
	})

	en_translations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterValidation("tag_key", validateTagKey)
	validate.RegisterValidation("resource_name", validateResourceName)

	registerCustomTranslations(validate, trans)
}

func validateTagKey(fl validator.FieldLevel) bool {
	return IsValidTagKey(fl.Field().String())
}

func validateResourceName(fl validator.FieldLevel) bool {
	return resourceNamePattern.MatchString(fl.Field().String())
}

// IsValidTagKey reports whether key can be used as an AWS tag key
func IsValidTagKey(key string) bool {
	if key == "" || len([]rune(key)) > maxTagKeyLength {
		return false
	}
	if strings.HasPrefix(strings.ToLower(key), "aws:") {
		return false
	}
	return tagKeyPattern.MatchString(key)
}

// ValidatePolicy validates a Policy instance and returns any validation errors
func ValidatePolicy(policy *types.Policy) error {
	if policy == nil {
		return &ParserErrors{Messages: []string{"policy is empty"}}
	}

	err := validate.Struct(policy)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("unexpected error during validation: %w", err)
	}

	translatedErrors := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		translatedErrors = append(translatedErrors, e.Translate(trans))
	}

	if len(translatedErrors) > 0 {
		return &ParserErrors{Messages: translatedErrors}
	}

	return nil
}

// Error returns a formatted string of all validation errors
func (e *ParserErrors) Error() string {
	return fmt.Sprintf("%d validation error(s) occurred:\n- %s",
		len(e.Messages),
		strings.Join(e.Messages, "\n- "))
}
