package types

import (
	"fmt"
	"strings"
)

// Kind is one of the four reference kinds managed by the catalog.
type Kind int

// Reference kinds. The zero value is not a valid kind.
const (
	KindNomenclature Kind = iota + 1
	KindRange
	KindCategory
	KindStorage
)

// Kinds lists every reference kind.
var Kinds = []Kind{KindNomenclature, KindRange, KindCategory, KindStorage}

// kindNames is the ordered resolution table. Entries are tried in order and
// the first match wins; synonyms map to the same kind.
var kindNames = []struct {
	name string
	kind Kind
}{
	{"nomenclature", KindNomenclature},
	{"range", KindRange},
	{"unit", KindRange},
	{"group", KindCategory},
	{"category", KindCategory},
	{"storage", KindStorage},
	{"warehouse", KindStorage},
}

// ParseKind resolves a free-form reference kind name. The input is trimmed
// and lowercased, then matched exactly against the resolution table, then by
// prefix (an input that starts with a table name, such as "units" or
// "nomenclatures"). Prefix matches naming two different kinds are ambiguous.
// Returns ErrUnknownReferenceKind when nothing or more than one kind matches.
func ParseKind(name string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	if norm == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownReferenceKind)
	}
	for _, entry := range kindNames {
		if norm == entry.name {
			return entry.kind, nil
		}
	}

	var found Kind
	for _, entry := range kindNames {
		if !strings.HasPrefix(norm, entry.name) {
			continue
		}
		if found != 0 && found != entry.kind {
			return 0, fmt.Errorf("%w: %q is ambiguous", ErrUnknownReferenceKind, name)
		}
		found = entry.kind
	}
	if found == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownReferenceKind, name)
	}
	return found, nil
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNomenclature:
		return "nomenclature"
	case KindRange:
		return "range"
	case KindCategory:
		return "category"
	case KindStorage:
		return "storage"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key returns the repository collection that stores entities of this kind.
func (k Kind) Key() CollectionKey {
	switch k {
	case KindNomenclature:
		return NomenclatureKey
	case KindRange:
		return RangeKey
	case KindCategory:
		return GroupKey
	case KindStorage:
		return StorageKey
	default:
		return ""
	}
}

// New returns an empty entity of this kind, or nil for an invalid kind.
func (k Kind) New() Entity {
	switch k {
	case KindNomenclature:
		return &Nomenclature{}
	case KindRange:
		return &Range{}
	case KindCategory:
		return &Category{}
	case KindStorage:
		return &Storage{}
	default:
		return nil
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindNomenclature && k <= KindStorage
}

// KindOf returns the reference kind stored under key. Document collections
// (receipts and movements) have no kind.
func KindOf(key CollectionKey) (Kind, bool) {
	for _, k := range Kinds {
		if k.Key() == key {
			return k, true
		}
	}
	return 0, false
}

// EntityKind returns the reference kind of e. Documents have no kind.
func EntityKind(e Entity) (Kind, bool) {
	switch e.(type) {
	case *Nomenclature:
		return KindNomenclature, true
	case *Range:
		return KindRange, true
	case *Category:
		return KindCategory, true
	case *Storage:
		return KindStorage, true
	default:
		return 0, false
	}
}
