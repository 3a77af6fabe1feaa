package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entity is a record stored in a repository collection.
type Entity interface {
	// Code returns the entity's unique_code.
	Code() string

	// References returns pointers to every reference-bearing attribute of
	// the entity, including references held inside composition lists.
	// Returns ErrMalformedHolder when some attributes cannot be enumerated;
	// the references that could be enumerated are still returned.
	References() ([]*Ref, error)
}

// Ref is a reference from one entity to another. It always carries the
// target's unique_code and, once resolved, a pointer to the live target.
// On the wire a Ref is the bare id string; the historical embedded-object
// form is accepted on read and reduced to its id.
type Ref struct {
	ID     string
	target Entity
}

// RefTo returns an unresolved reference to id.
func RefTo(id string) Ref {
	return Ref{ID: id}
}

// RefOf returns a reference resolved to e. A nil entity yields the zero Ref.
func RefOf(e Entity) Ref {
	if e == nil {
		return Ref{}
	}
	return Ref{ID: e.Code(), target: e}
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool { return r.ID == "" }

// Target returns the resolved entity, or nil when unresolved.
func (r Ref) Target() Entity { return r.target }

// Matches reports whether the reference points at id.
func (r Ref) Matches(id string) bool { return r.ID != "" && r.ID == id }

// Bind points the reference at e when e carries the same id. It returns
// false and leaves the reference unchanged otherwise.
func (r *Ref) Bind(e Entity) bool {
	if e == nil || r.ID == "" || e.Code() != r.ID {
		return false
	}
	r.target = e
	return true
}

// Resolve points the reference at the live entity registered under its id in
// lookup. It is idempotent; an id missing from lookup clears the pointer.
// Reports whether the reference is resolved afterwards.
func (r *Ref) Resolve(lookup map[string]Entity) bool {
	if r.ID == "" {
		r.target = nil
		return false
	}
	r.target = lookup[r.ID]
	return r.target != nil
}

// MarshalJSON writes the id, or null for an empty reference.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts null, a bare id string, or an embedded entity object
// carrying unique_code.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	r.target = nil
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		r.ID = ""
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &r.ID)
	case data[0] == '{':
		var embedded struct {
			UniqueCode string `json:"unique_code"`
			ID         string `json:"id"`
		}
		if err := json.Unmarshal(data, &embedded); err != nil {
			return err
		}
		r.ID = embedded.UniqueCode
		if r.ID == "" {
			r.ID = embedded.ID
		}
		return nil
	default:
		return fmt.Errorf("reference must be a string or object, got %s", data)
	}
}
