package nethttp

import (
	"github.com/gofiber/fiber/v2"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
)

// ResponseError is the JSON body returned to clients for any failed request.
type ResponseError struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func (r ResponseError) Error() string { return r.Message }

// WithError maps an internal error to the closed set of HTTP responses,
// adapted from the teacher's WithError switch. Every branch answers with a
// Kind from the core error taxonomy so clients can drive retry/backoff
// decisions off the response body alone, per spec.md §7.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case mzerrors.EntityNotFoundError:
		return NotFound(c, string(mzerrors.KindUnknown), e.Error())
	case mzerrors.EntityConflictError:
		return Conflict(c, string(mzerrors.KindConflict), e.Error())
	case mzerrors.ValidationError:
		return BadRequest(c, string(mzerrors.KindValidation), e.Error(), e.Errors)
	case *mzerrors.TaxonomyError:
		return fromTaxonomy(c, e)
	case mzerrors.TaxonomyError:
		return fromTaxonomy(c, &e)
	default:
		return InternalServerError(c, string(mzerrors.KindServer), err.Error())
	}
}

func fromTaxonomy(c *fiber.Ctx, e *mzerrors.TaxonomyError) error {
	switch e.Kind {
	case mzerrors.KindQuota:
		return c.Status(fiber.StatusTooManyRequests).JSON(ResponseError{Kind: string(e.Kind), Message: e.Error()})
	case mzerrors.KindPermitExpired, mzerrors.KindInvalidSignature:
		return c.Status(fiber.StatusUnauthorized).JSON(ResponseError{Kind: string(e.Kind), Message: e.Error()})
	case mzerrors.KindValidation:
		return BadRequest(c, string(e.Kind), e.Error(), nil)
	case mzerrors.KindConflict:
		return Conflict(c, string(e.Kind), e.Error())
	case mzerrors.KindIdempotentDuplicate:
		return c.Status(fiber.StatusOK).JSON(ResponseError{Kind: string(e.Kind), Message: e.Error()})
	case mzerrors.KindNetwork:
		return c.Status(fiber.StatusBadGateway).JSON(ResponseError{Kind: string(e.Kind), Message: e.Error()})
	default:
		return InternalServerError(c, string(e.Kind), e.Error())
	}
}

func BadRequest(c *fiber.Ctx, kind, message string, fields []string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ResponseError{Kind: kind, Message: message, Fields: fields})
}

func NotFound(c *fiber.Ctx, kind, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(ResponseError{Kind: kind, Message: message})
}

func Conflict(c *fiber.Ctx, kind, message string) error {
	return c.Status(fiber.StatusConflict).JSON(ResponseError{Kind: kind, Message: message})
}

func InternalServerError(c *fiber.Ctx, kind, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{Kind: kind, Message: message})
}
