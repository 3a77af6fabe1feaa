package types

import (
	"errors"
	"fmt"
	"strings"
)

// Client errors returned by catalog operations. Callers classify them with
// errors.Is; the structured types below wrap them.
var (
	ErrUnknownReferenceKind = errors.New("unknown reference kind")
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateKey         = errors.New("duplicate unique_code")
	ErrNotFound             = errors.New("entity not found")
	ErrReferentialIntegrity = errors.New("entity is still referenced")
	ErrVetoed               = errors.New("operation vetoed by subscriber")
)

// Persistence errors.
var (
	ErrConfiguration     = errors.New("persistence is not configured")
	ErrFormat            = errors.New("malformed repository document")
	ErrUnknownCollection = errors.New("unknown collection key")
)

// ErrMalformedHolder is returned by Entity.References when an entity's
// reference-bearing attributes cannot be enumerated.
var ErrMalformedHolder = errors.New("malformed reference holder")

// FieldError describes one rejected payload field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists the missing or invalid fields of a payload.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Kind   Kind
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	subject := "payload"
	if e.Kind.Valid() {
		subject = e.Kind.String() + " payload"
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, subject, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Holder identifies an entity that holds a reference.
type Holder struct {
	Key CollectionKey `json:"key"`
	ID  string        `json:"id"`
}

// ReferentialIntegrityError reports the holders that block a delete. Holders
// is truncated to the first few conflicts; Total counts all of them.
// It matches ErrReferentialIntegrity under errors.Is.
type ReferentialIntegrityError struct {
	Key     CollectionKey
	ID      string
	Holders []Holder
	Total   int
}

func (e *ReferentialIntegrityError) Error() string {
	parts := make([]string, 0, len(e.Holders))
	for _, h := range e.Holders {
		parts = append(parts, fmt.Sprintf("%s/%s", h.Key, h.ID))
	}
	msg := fmt.Sprintf("%s %q still referenced by %s", e.Key, e.ID, strings.Join(parts, ", "))
	if e.Total > len(e.Holders) {
		msg += fmt.Sprintf(" (and %d more)", e.Total-len(e.Holders))
	}
	return msg
}

func (e *ReferentialIntegrityError) Is(target error) bool {
	return target == ErrReferentialIntegrity
}
