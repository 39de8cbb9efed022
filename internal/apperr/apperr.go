// Package apperr defines the error kinds surfaced by the workload engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind classifies an error for callers.
type Kind int

const (
	// KindInternal is any error that is not one of the classified kinds.
	KindInternal Kind = iota
	// KindValidation means the input was malformed or out of range.
	KindValidation
	// KindNotFound means a referenced study, coordinator or row is absent.
	KindNotFound
	// KindUpstream means a persistence or auth collaborator failed.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// Error is a classified engine error.
type Error struct {
	Kind   Kind
	Op     string
	Fields map[string]string // field -> problem, validation only
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case len(e.Fields) > 0:
		b.WriteString("invalid input: ")
		b.WriteString(e.fieldSummary())
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) fieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Validation returns a validation error for the given field problems.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Fields: fields}
}

// Invalid is shorthand for a single-field validation error.
func Invalid(op, field, problem string) *Error {
	return Validation(op, map[string]string{field: problem})
}

// NotFound returns a not-found error for the named entity.
func NotFound(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: eris.Errorf("%s %q not found", entity, id)}
}

// Upstream wraps a collaborator failure.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// FieldsOf returns the validation fields in err's chain, if any.
func FieldsOf(err error) map[string]string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsUpstream reports whether err is an upstream failure.
func IsUpstream(err error) bool { return KindOf(err) == KindUpstream }

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
