package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// customTags are the domain validations registered next to the built-ins.
var customTags = []struct {
	tag     string
	fn      govalidator.Func
	message string
}{
	{
		tag:     "sha256hex",
		fn:      func(fl govalidator.FieldLevel) bool { return sha256Hex.MatchString(fl.Field().String()) },
		message: "{0} must be 64 lowercase hex characters",
	},
	{
		tag:     "evmaddress",
		fn:      func(fl govalidator.FieldLevel) bool { return common.IsHexAddress(fl.Field().String()) },
		message: "{0} must be a 0x-prefixed 20-byte address",
	},
}

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// Register English translations.
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		en_translations.RegisterDefaultTranslations(v, trans)

		for _, ct := range customTags {
			_ = v.RegisterValidation(ct.tag, ct.fn)
			registerMessage(v, ct.tag, ct.message)
		}
	}
}

func registerMessage(v *govalidator.Validate, tag, message string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error { return ut.Add(tag, message, true) },
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fieldPath(fe)] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// fieldPath keeps nested names ("payload.answer_hash") so errors on embedded
// request parts stay distinguishable.
func fieldPath(fe govalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// IsSHA256Hex reports whether s is a lowercase hex SHA-256 digest, the shape
// of every pseudonym and answer hash.
func IsSHA256Hex(s string) bool {
	return sha256Hex.MatchString(s)
}
