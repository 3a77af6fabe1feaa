package catalog

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// AddRecord stores a document (receipt, transaction or turnover) under key.
// Every reference it holds must name an existing entity of the right kind.
// A missing unique_code is generated and a missing movement date is set to
// now. Balances under rest_key are derived from transactions and refused.
// Publishes record_added.
func (s *Service) AddRecord(key types.CollectionKey, e types.Entity) (err error) {
	defer func() { s.metrics.ObserveOperation("add_record", string(key), err) }()

	if !types.IsCollectionKey(key) {
		return fmt.Errorf("%w: %q", types.ErrUnknownCollection, key)
	}
	if _, isReference := types.KindOf(key); isReference {
		return fmt.Errorf("%w: %q holds reference entities", types.ErrUnknownCollection, key)
	}
	if key == types.RestKey {
		return fmt.Errorf("%w: %q is derived from transactions", types.ErrUnknownCollection, key)
	}
	want, _ := types.NewEntity(key)
	if e == nil || reflect.ValueOf(e).IsNil() || reflect.TypeOf(e) != reflect.TypeOf(want) {
		return &types.ValidationError{Fields: []types.FieldError{{Field: "record", Reason: fmt.Sprintf("%s expects %T", key, want)}}}
	}

	s.mu.Lock()
	defer s.unlockAndPublish()

	s.fillDefaults(e)
	if fieldErrs := validationErrors(s.validate.Struct(e)); len(fieldErrs) > 0 {
		return &types.ValidationError{Fields: fieldErrs}
	}
	if err := s.checkUnused(e.Code()); err != nil {
		return err
	}

	lookup := s.repo.Lookup()
	if fieldErrs := checkRefs(recordRefs(e), lookup); len(fieldErrs) > 0 {
		return &types.ValidationError{Fields: fieldErrs}
	}
	refs, err := e.References()
	if err != nil {
		return &types.ValidationError{Fields: []types.FieldError{{Field: "record", Reason: err.Error()}}}
	}
	for _, ref := range refs {
		ref.Resolve(lookup)
	}

	if err := s.repo.Append(key, e); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"key": key, "id": e.Code()}).Debug("record added")

	s.publish(events.Event{
		Name:    events.RecordAdded,
		Payload: events.RecordPayload{Key: key, Entity: e},
	})
	return nil
}

// Records returns the documents stored under key.
func (s *Service) Records(key types.CollectionKey) ([]types.Entity, error) {
	if !types.IsCollectionKey(key) {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownCollection, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.Get(key), nil
}

func (s *Service) fillDefaults(e types.Entity) {
	switch v := e.(type) {
	case *types.Receipt:
		if v.UniqueCode == "" {
			v.UniqueCode = types.NewCode()
		}
	case *types.Movement:
		if v.UniqueCode == "" {
			v.UniqueCode = types.NewCode()
		}
		if v.Date.IsZero() {
			v.Date = s.now().UTC()
		}
	}
}

// recordRefs lists the reference attributes of a document with the kind
// each must reference.
func recordRefs(e types.Entity) []refField {
	switch v := e.(type) {
	case *types.Receipt:
		var out []refField
		for i, entry := range v.Composition {
			if entry == nil {
				continue
			}
			prefix := fmt.Sprintf("composition[%d].", i)
			out = append(out, movementRefs(prefix, entry.Nomenclature, entry.Unit, entry.Storage)...)
		}
		return out
	case *types.Movement:
		return movementRefs("", v.Nomenclature, v.Unit, v.Storage)
	default:
		return nil
	}
}

func movementRefs(prefix string, nomenclature, unit, storage types.Ref) []refField {
	return []refField{
		{field: prefix + "nomenclature_id", id: nomenclature.ID, kind: types.KindNomenclature, required: true},
		{field: prefix + "unit_id", id: unit.ID, kind: types.KindRange},
		{field: prefix + "storage_id", id: storage.ID, kind: types.KindStorage},
	}
}
