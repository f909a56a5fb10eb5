package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// TagSessionToken validates a 256-bit session token in lowercase hex.
const TagSessionToken = "session_token"

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// standalone validates structs outside of request binding (provisioning tools).
var standalone *govalidator.Validate

// Setup registers the validator with English translations on Gin's binding engine
// and prepares the standalone validator. Call once during application startup.
func Setup() {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")

	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		configure(v)
	}

	standalone = govalidator.New(govalidator.WithRequiredStructEnabled())
	configure(standalone)
}

func configure(v *govalidator.Validate) {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation(TagSessionToken, isSessionToken)

	en_translations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterTranslation(TagSessionToken, trans,
		func(ut ut.Translator) error {
			return ut.Add(TagSessionToken, "{0} must be a 64-character lowercase hex token", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T(TagSessionToken, fe.Field())
			return t
		},
	)
}

func isSessionToken(fl govalidator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Struct validates s against its `validate` tags.
// Returns nil on success or a translated field error map on failure.
func Struct(s interface{}) map[string]string {
	if standalone == nil {
		Setup()
	}
	if err := standalone.Struct(s); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
