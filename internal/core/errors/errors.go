// Package errors defines Yorutsuke's closed error taxonomy (spec.md §7) and
// the entity-shaped storage errors adapted from the teacher's common
// package. Low-level adapters (storage, HTTP) return the entity-shaped
// errors below; domain modules translate those into a Kind from the closed
// taxonomy before a user-visible layer ever sees them, per spec.md §7's
// propagation policy.
package errors

import (
	"fmt"
	"strings"
)

// Kind is the closed error taxonomy from spec.md §7.
type Kind string

const (
	KindNetwork            Kind = "network"
	KindServer             Kind = "server"
	KindQuota              Kind = "quota"
	KindPermitExpired      Kind = "permit_expired"
	KindInvalidSignature   Kind = "invalid_signature"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindIdempotentDuplicate Kind = "idempotent_duplicate"
	KindUnknown            Kind = "unknown"
)

// Retriable reports whether an error of this Kind should ever be retried.
// KindConflict is retriable only after a rebase (spec.md §7); callers that
// can't rebase should treat it as non-retriable.
func (k Kind) Retriable() bool {
	switch k {
	case KindNetwork, KindServer, KindConflict:
		return true
	default:
		return false
	}
}

// TaxonomyError is a structured error carrying a closed Kind plus the
// underlying cause, ready to cross the client/cloud boundary or to drive
// the upload queue's failure classification (spec.md §4.1 step 7).
type TaxonomyError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *TaxonomyError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}

	return string(e.Kind)
}

func (e *TaxonomyError) Unwrap() error { return e.Err }

// New constructs a TaxonomyError of the given Kind.
func New(kind Kind, message string) *TaxonomyError {
	return &TaxonomyError{Kind: kind, Message: message}
}

// Wrap constructs a TaxonomyError of the given Kind around an existing error.
func Wrap(kind Kind, err error) *TaxonomyError {
	if err == nil {
		return nil
	}

	return &TaxonomyError{Kind: kind, Err: err}
}

// KindOf extracts the Kind from an error, defaulting to KindUnknown for any
// error that hasn't been classified yet.
func KindOf(err error) Kind {
	var te *TaxonomyError
	if as(err, &te) {
		return te.Kind
	}

	return KindUnknown
}

// as is a tiny local errors.As to avoid importing the standard "errors"
// package under a name that collides with this package's own name.
func as(err error, target **TaxonomyError) bool {
	for err != nil {
		if te, ok := err.(*TaxonomyError); ok {
			*target = te
			return true
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}

// EntityNotFoundError records that an entity was absent from a repository
// (database, cache, or otherwise). Adapted from the teacher's
// common.EntityNotFoundError.
type EntityNotFoundError struct {
	EntityType string
	Message    string
	Err        error
}

func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}

	if strings.TrimSpace(e.EntityType) != "" {
		return fmt.Sprintf("entity %s not found", e.EntityType)
	}

	return "entity not found"
}

func (e EntityNotFoundError) Unwrap() error { return e.Err }

// EntityConflictError records that a write lost an optimistic-concurrency
// race (spec.md §3.4's version check) or hit a uniqueness constraint.
type EntityConflictError struct {
	EntityType string
	Message    string
	Err        error
}

func (e EntityConflictError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

func (e EntityConflictError) Unwrap() error { return e.Err }

// ValidationError records an airlock rejection (spec.md §7's "Airlock
// points" — untrusted AI output or external JSON that failed schema checks).
type ValidationError struct {
	EntityType string
	Message    string
	Errors     []string
	Err        error
}

func (e ValidationError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Errors, "; "))
	}

	return e.Message
}

func (e ValidationError) Unwrap() error { return e.Err }
