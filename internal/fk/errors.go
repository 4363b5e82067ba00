package fk

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	// ErrValidation is returned for malformed constraint requests.
	ErrValidation = errors.New("fkschema: invalid foreign key")

	// ErrUnsupported is returned when the engine lacks a capability.
	ErrUnsupported = errors.New("fkschema: unsupported by engine")

	// ErrNotFound is returned when a lookup spec matches no constraint.
	ErrNotFound = errors.New("fkschema: foreign key not found")

	// ErrArity is returned for calls with the wrong number of arguments.
	ErrArity = errors.New("fkschema: wrong number of arguments")
)

// ValidationError describes a malformed constraint request.
type ValidationError struct {
	Table   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("fkschema: %s: invalid %s: %s", e.Table, e.Field, e.Message)
	}
	return fmt.Sprintf("fkschema: %s: %s", e.Table, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnsupportedError describes a capability the engine does not have.
type UnsupportedError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("fkschema: %s does not support %s", e.Dialect, e.Feature)
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// NotFoundError carries the table and the Spec that failed to match.
type NotFoundError struct {
	Table string
	Spec  Spec
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fkschema: no foreign key constraint found on %q matching %s", e.Table, e.Spec)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ArityError is returned when a call form has the wrong number of
// positional arguments.
type ArityError struct {
	Call string
	Want string
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("fkschema: %s expects %s positional arguments, got %d", e.Call, e.Want, e.Got)
}

// Is reports whether target is ErrArity.
func (e *ArityError) Is(target error) bool {
	return target == ErrArity
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnsupported reports whether err is an UnsupportedError.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
