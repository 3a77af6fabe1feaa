package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CompositionEntry is one ingredient of a receipt.
type CompositionEntry struct {
	Nomenclature Ref             `json:"nomenclature_id"`
	Unit         Ref             `json:"unit_id"`
	Storage      Ref             `json:"storage_id"`
	Value        decimal.Decimal `json:"value"`
}

// NomenclatureTarget returns the resolved nomenclature, or nil.
func (c *CompositionEntry) NomenclatureTarget() *Nomenclature {
	n, _ := c.Nomenclature.Target().(*Nomenclature)
	return n
}

// UnmarshalJSON also accepts the historical embedded-object keys
// nomenclature, unit and storage.
func (c *CompositionEntry) UnmarshalJSON(data []byte) error {
	type plain CompositionEntry
	if err := json.Unmarshal(data, (*plain)(c)); err != nil {
		return err
	}
	return fillLegacyRefs(data, map[string]*Ref{
		"nomenclature": &c.Nomenclature,
		"unit":         &c.Unit,
		"storage":      &c.Storage,
	})
}

// Receipt is a recipe: an ordered composition of nomenclature quantities.
type Receipt struct {
	UniqueCode  string              `json:"unique_code" validate:"max=128"`
	Name        string              `json:"name" validate:"required,max=255"`
	CookingTime string              `json:"cooking_time" validate:"max=64"`
	Portions    int                 `json:"portions" validate:"gte=0"`
	Steps       []string            `json:"steps"`
	Composition []*CompositionEntry `json:"composition" validate:"dive,required"`
}

func (r *Receipt) Code() string { return r.UniqueCode }

// References returns the references of every composition entry. A nil entry
// yields ErrMalformedHolder together with the references of the others.
func (r *Receipt) References() ([]*Ref, error) {
	refs := make([]*Ref, 0, 3*len(r.Composition))
	var err error
	for i, entry := range r.Composition {
		if entry == nil {
			if err == nil {
				err = fmt.Errorf("%w: receipt %q composition entry %d is nil", ErrMalformedHolder, r.UniqueCode, i)
			}
			continue
		}
		refs = append(refs, &entry.Nomenclature, &entry.Unit, &entry.Storage)
	}
	return refs, err
}

// Movement is a flat stock record: a transaction, a balance (rest) or a
// turnover line. All three share the same shape.
type Movement struct {
	UniqueCode   string          `json:"unique_code"`
	Date         time.Time       `json:"date"`
	Nomenclature Ref             `json:"nomenclature_id"`
	Unit         Ref             `json:"unit_id"`
	Storage      Ref             `json:"storage_id"`
	Value        decimal.Decimal `json:"value"`
}

func (m *Movement) Code() string { return m.UniqueCode }

func (m *Movement) References() ([]*Ref, error) {
	return []*Ref{&m.Nomenclature, &m.Unit, &m.Storage}, nil
}

// NomenclatureTarget returns the resolved nomenclature, or nil.
func (m *Movement) NomenclatureTarget() *Nomenclature {
	n, _ := m.Nomenclature.Target().(*Nomenclature)
	return n
}

// UnmarshalJSON also accepts the historical embedded-object keys
// nomenclature, unit and storage.
func (m *Movement) UnmarshalJSON(data []byte) error {
	type plain Movement
	if err := json.Unmarshal(data, (*plain)(m)); err != nil {
		return err
	}
	return fillLegacyRefs(data, map[string]*Ref{
		"nomenclature": &m.Nomenclature,
		"unit":         &m.Unit,
		"storage":      &m.Storage,
	})
}

// UnmarshalJSON also accepts the historical embedded-object keys range and
// category.
func (n *Nomenclature) UnmarshalJSON(data []byte) error {
	type plain Nomenclature
	if err := json.Unmarshal(data, (*plain)(n)); err != nil {
		return err
	}
	return fillLegacyRefs(data, map[string]*Ref{
		"range":    &n.Range,
		"category": &n.Category,
	})
}

// fillLegacyRefs sets every still-empty reference from its historical key.
func fillLegacyRefs(data []byte, legacy map[string]*Ref) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, ref := range legacy {
		v, ok := raw[key]
		if !ok || !ref.IsZero() {
			continue
		}
		if err := ref.UnmarshalJSON(v); err != nil {
			return fmt.Errorf("legacy %s: %w", key, err)
		}
	}
	return nil
}
