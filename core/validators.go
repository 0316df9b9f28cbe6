package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	queryFieldTag   = "queryfield"
	queryFieldText  = "only lowercase letters, digits and underscores are allowed"
	queryFieldRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// NewValidator returns a validator with the english translations and our custom tags registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(queryFieldTag, queryFieldValidation)
	RegisterCustomTranslation(validate, translator, queryFieldTag, queryFieldText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateValidation converts validator errors into a *ValidationError keyed by JSON field names.
func TranslateValidation(vErrs validator.ValidationErrors, translator ut.Translator) error {
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		field := vErr.Namespace()
		if i := strings.Index(field, "."); i >= 0 { // drop the top-level struct name
			field = field[i+1:]
		}
		flds = append(flds, FieldError{Field: field, Error: vErr.Translate(translator)})
	}
	return NewValidationError(nil, flds...)
}

// Custom Global Validators

// queryFieldValidation only allows names usable as URL query parameters without escaping.
func queryFieldValidation(fl validator.FieldLevel) bool {
	return queryFieldRegex.MatchString(fl.Field().String())
}
