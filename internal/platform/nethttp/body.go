package nethttp

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	enTranslations "github.com/go-playground/validator/translations/en"
	"github.com/gofiber/fiber/v2"
	"gopkg.in/go-playground/validator.v9"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
)

// DecodeHandlerFunc receives a struct already decoded and validated by
// WithBody, adapted from the teacher's decoderHandler pattern.
type DecodeHandlerFunc func(payload any, c *fiber.Ctx) error

type decoderHandler struct {
	handler      DecodeHandlerFunc
	structSource any
}

func newOfType(s any) any {
	t := reflect.TypeOf(s)
	v := reflect.New(t.Elem())

	return v.Interface()
}

func (d *decoderHandler) fiberHandlerFunc(c *fiber.Ctx) error {
	payload := newOfType(d.structSource)

	if err := json.Unmarshal(c.Body(), payload); err != nil {
		return BadRequest(c, string(mzerrors.KindValidation), "malformed JSON body", nil)
	}

	if err := ValidateStruct(payload); err != nil {
		return WithError(c, err)
	}

	return d.handler(payload, c)
}

// WithBody decodes the request body into a fresh instance of the type
// pointed to by s, validates it, and hands it to h.
func WithBody(s any, h DecodeHandlerFunc) fiber.Handler {
	d := &decoderHandler{handler: h, structSource: s}
	return d.fiberHandlerFunc
}

// ValidateStruct validates s against its `validate` struct tags, returning
// a ValidationError with one message per failed field.
func ValidateStruct(s any) error {
	k := reflect.ValueOf(s).Kind()
	if k == reflect.Ptr {
		k = reflect.ValueOf(s).Elem().Kind()
	}

	if k != reflect.Struct {
		return nil
	}

	v, trans := newValidator()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return mzerrors.ValidationError{Message: err.Error()}
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Translate(trans))
	}

	return mzerrors.ValidationError{
		Message: "request body failed validation",
		Errors:  messages,
	}
}

//nolint:ireturn
func newValidator() (*validator.Validate, ut.Translator) {
	locale := en.New()
	uni := ut.New(locale, locale)

	trans, _ := uni.GetTranslator("en")

	v := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v, trans
}
