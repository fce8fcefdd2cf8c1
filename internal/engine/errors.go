package engine

import (
	"errors"
	"fmt"
	"strings"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

// ErrNotFound is matched by every not-found error the engine returns.
var ErrNotFound = repo.ErrNotFound

// NotFoundError reports a missing entity addressed by id.
type NotFoundError struct {
	Entity domain.EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity.Label(), e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TargetNotFoundError reports a missing container for an import or bulk operation.
type TargetNotFoundError struct {
	Entity domain.EntityType
	ID     string
}

func (e TargetNotFoundError) Error() string {
	return fmt.Sprintf("target %s %s not found", e.Entity.Label(), e.ID)
}

func (e TargetNotFoundError) Is(target error) bool { return target == ErrNotFound }

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) ValidationError {
	return ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// validator collects field errors before returning them together.
type validator struct {
	fields []FieldError
}

func (v *validator) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.fields = append(v.fields, FieldError{Field: field, Message: "is required"})
	}
}

func (v *validator) level(field, value string) {
	if value != "" && !domain.ValidLevel(value) {
		v.fields = append(v.fields, FieldError{Field: field, Message: "must be one of Low, Medium, High"})
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return ValidationError{Fields: v.fields}
}

// ReferenceError reports a create or update pointing at a missing parent.
type ReferenceError struct {
	Entity domain.EntityType
	ID     string
}

func (e ReferenceError) Error() string {
	return fmt.Sprintf("referenced %s does not exist", e.Entity.Label())
}

// LockedError rejects edits to an entity whose status is locked.
type LockedError struct {
	Entity domain.EntityType
	ID     string
}

func (e LockedError) Error() string {
	return fmt.Sprintf("cannot modify locked %s", e.Entity.Label())
}

// StatusNotDeletableError rejects deleting an entity, or a descendant, whose status forbids it.
type StatusNotDeletableError struct {
	Entity domain.EntityType
	ID     string
	Status string
}

func (e StatusNotDeletableError) Error() string {
	return fmt.Sprintf("%s in status '%s' cannot be deleted", e.Entity.Label(), e.Status)
}

// UniqueConstraintError reports a duplicate key.
type UniqueConstraintError struct {
	Entity domain.EntityType
	Err    error
}

func (e UniqueConstraintError) Error() string {
	return fmt.Sprintf("%s key already exists", e.Entity.Label())
}

func (e UniqueConstraintError) Unwrap() error { return e.Err }

// storeErr converts repo errors into the engine's typed errors.
func storeErr(t domain.EntityType, id string, err error) error {
	if err == nil || typed(err) {
		return err
	}
	switch {
	case errors.Is(err, repo.ErrUnique):
		return UniqueConstraintError{Entity: t, Err: err}
	case errors.Is(err, repo.ErrForeignKey):
		return ReferenceError{Entity: t}
	case errors.Is(err, repo.ErrNotFound):
		return NotFoundError{Entity: t, ID: id}
	}
	return err
}

func typed(err error) bool {
	var (
		nf  NotFoundError
		tnf TargetNotFoundError
		ve  ValidationError
		re  ReferenceError
		le  LockedError
		nd  StatusNotDeletableError
		ue  UniqueConstraintError
	)
	return errors.As(err, &nf) || errors.As(err, &tnf) || errors.As(err, &ve) || errors.As(err, &re) ||
		errors.As(err, &le) || errors.As(err, &nd) || errors.As(err, &ue)
}
