// Package validate runs client-side payload checks before a request leaves
// the process. Messages are translated to English and keyed by JSON field
// names so they read the same as backend validation details.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/atinyakov/kongtze/internal/models"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags
	pinTag       = "pin"
	clockTag     = "clock"
	loginModeTag = "login_mode"

	pinRe   = regexp.MustCompile(`^\d{4}$`)
	clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(pinTag, pinValidation)
	_ = validate.RegisterValidation(clockTag, clockValidation)
	validate.RegisterStructValidation(loginStructValidation, models.UserLogin{})

	registerCustomTranslations(map[string]string{
		pinTag:       "{0} must be exactly 4 digits",
		clockTag:     "{0} must be a time of day (HH:MM or HH:MM:SS)",
		loginModeTag: "provide either email and password, or a PIN",
	})
}

func registerCustomTranslations(texts map[string]string) {
	for tag, text := range texts {
		text := text
		register := func(t ut.Translator) error {
			return t.Add(tag, text, true)
		}
		translate := func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		}
		_ = validate.RegisterTranslation(tag, translator, register, translate)
	}
}

func pinValidation(fl validator.FieldLevel) bool {
	return pinRe.MatchString(fl.Field().String())
}

func clockValidation(fl validator.FieldLevel) bool {
	return clockRe.MatchString(fl.Field().String())
}

// loginStructValidation enforces exactly one credential mode on UserLogin.
func loginStructValidation(sl validator.StructLevel) {
	l, ok := sl.Current().Interface().(models.UserLogin)
	if !ok {
		return
	}
	email := strings.TrimSpace(l.Email)
	switch {
	case l.PIN != "" && (email != "" || l.Password != ""):
		sl.ReportError(l.PIN, "pin", "PIN", loginModeTag, "")
	case l.PIN == "":
		if email == "" {
			sl.ReportError(l.Email, "email", "Email", loginModeTag, "")
		}
		if l.Password == "" {
			sl.ReportError(l.Password, "password", "Password", loginModeTag, "")
		}
	}
}

// FieldError is a single failed check.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports every failed check of one payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Field returns the message for field, if it failed.
func (e *ValidationError) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

// Struct validates v against its `validate` tags and registered struct rules.
// It returns a *ValidationError when any check fails.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(translator),
		})
	}
	return out
}
