package catalog

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// payload is the input shape of one reference kind. It is decoded from a
// loosely typed map, validated, checked against the repository, and then
// written onto an entity.
type payload interface {
	code() string
	setCode(string)
	// refs lists the reference attributes carried by the payload.
	refs() []refField
	// check runs kind-specific checks beyond the struct tags.
	check(lookup map[string]types.Entity) []types.FieldError
	// apply writes the payload onto e, resolving references through lookup.
	apply(e types.Entity, lookup map[string]types.Entity)
}

// refField is one *_id attribute and the kind it must reference.
type refField struct {
	field    string
	id       string
	kind     types.Kind
	required bool
}

// newPayload returns the payload shape of k, prefilled from current when it
// is not nil.
func newPayload(k types.Kind, current types.Entity) payload {
	switch k {
	case types.KindNomenclature:
		p := &nomenclaturePayload{}
		if n, ok := current.(*types.Nomenclature); ok {
			p.UniqueCode, p.Name, p.FullName = n.UniqueCode, n.Name, n.FullName
			p.RangeID, p.CategoryID = n.Range.ID, n.Category.ID
		}
		return p
	case types.KindRange:
		p := &rangePayload{Value: 1}
		if r, ok := current.(*types.Range); ok {
			p.UniqueCode, p.Name, p.Value, p.BaseID = r.UniqueCode, r.Name, r.Value, r.Base.ID
		}
		return p
	case types.KindCategory:
		p := &categoryPayload{}
		if c, ok := current.(*types.Category); ok {
			p.UniqueCode, p.Name = c.UniqueCode, c.Name
		}
		return p
	case types.KindStorage:
		p := &storagePayload{}
		if s, ok := current.(*types.Storage); ok {
			p.UniqueCode, p.Name, p.Address = s.UniqueCode, s.Name, s.Address
		}
		return p
	default:
		return nil
	}
}

type nomenclaturePayload struct {
	UniqueCode string `mapstructure:"unique_code" validate:"max=128"`
	Name       string `mapstructure:"name" validate:"required,max=255"`
	FullName   string `mapstructure:"full_name" validate:"max=255"`
	RangeID    string `mapstructure:"range_id" validate:"required"`
	CategoryID string `mapstructure:"category_id" validate:"required"`
}

func (p *nomenclaturePayload) code() string { return p.UniqueCode }
func (p *nomenclaturePayload) setCode(c string) { p.UniqueCode = c }
func (p *nomenclaturePayload) check(map[string]types.Entity) []types.FieldError { return nil }

func (p *nomenclaturePayload) refs() []refField {
	return []refField{
		{field: "range_id", id: p.RangeID, kind: types.KindRange, required: true},
		{field: "category_id", id: p.CategoryID, kind: types.KindCategory, required: true},
	}
}

func (p *nomenclaturePayload) apply(e types.Entity, lookup map[string]types.Entity) {
	n := e.(*types.Nomenclature)
	n.UniqueCode, n.Name, n.FullName = p.UniqueCode, p.Name, p.FullName
	n.Range = resolved(p.RangeID, lookup)
	n.Category = resolved(p.CategoryID, lookup)
}

type rangePayload struct {
	UniqueCode string `mapstructure:"unique_code" validate:"max=128"`
	Name       string `mapstructure:"name" validate:"required,max=255"`
	Value      int    `mapstructure:"value" validate:"min=1"`
	BaseID     string `mapstructure:"base_id"`
}

func (p *rangePayload) code() string { return p.UniqueCode }
func (p *rangePayload) setCode(c string) { p.UniqueCode = c }

func (p *rangePayload) refs() []refField {
	return []refField{{field: "base_id", id: p.BaseID, kind: types.KindRange}}
}

// check rejects a base chain that leads back to the range itself.
func (p *rangePayload) check(lookup map[string]types.Entity) []types.FieldError {
	id := p.BaseID
	for steps := 0; id != "" && steps <= len(lookup); steps++ {
		if id == p.UniqueCode {
			return []types.FieldError{{Field: "base_id", Reason: "forms a cycle"}}
		}
		r, ok := lookup[id].(*types.Range)
		if !ok {
			return nil
		}
		id = r.Base.ID
	}
	return nil
}

func (p *rangePayload) apply(e types.Entity, lookup map[string]types.Entity) {
	r := e.(*types.Range)
	r.UniqueCode, r.Name, r.Value = p.UniqueCode, p.Name, p.Value
	r.Base = resolved(p.BaseID, lookup)
}

type categoryPayload struct {
	UniqueCode string `mapstructure:"unique_code" validate:"max=128"`
	Name       string `mapstructure:"name" validate:"required,max=255"`
}

func (p *categoryPayload) code() string { return p.UniqueCode }
func (p *categoryPayload) setCode(c string) { p.UniqueCode = c }
func (p *categoryPayload) refs() []refField { return nil }
func (p *categoryPayload) check(map[string]types.Entity) []types.FieldError { return nil }

func (p *categoryPayload) apply(e types.Entity, _ map[string]types.Entity) {
	c := e.(*types.Category)
	c.UniqueCode, c.Name = p.UniqueCode, p.Name
}

type storagePayload struct {
	UniqueCode string `mapstructure:"unique_code" validate:"max=128"`
	Name       string `mapstructure:"name" validate:"required,max=255"`
	Address    string `mapstructure:"address" validate:"max=512"`
}

func (p *storagePayload) code() string { return p.UniqueCode }
func (p *storagePayload) setCode(c string) { p.UniqueCode = c }
func (p *storagePayload) refs() []refField { return nil }
func (p *storagePayload) check(map[string]types.Entity) []types.FieldError { return nil }

func (p *storagePayload) apply(e types.Entity, _ map[string]types.Entity) {
	s := e.(*types.Storage)
	s.UniqueCode, s.Name, s.Address = p.UniqueCode, p.Name, p.Address
}

// resolved returns a reference to id bound through lookup.
func resolved(id string, lookup map[string]types.Entity) types.Ref {
	ref := types.RefTo(id)
	ref.Resolve(lookup)
	return ref
}

// decodePayload decodes fields onto p. Unknown names are ignored. It returns
// the names that were applied, in declaration order, and the fields that
// could not be decoded.
func decodePayload(fields map[string]any, p payload) ([]string, []types.FieldError) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     p,
		Metadata:   &md,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.DecodeHookFuncType(integralFloat),
	})
	if err != nil {
		return nil, []types.FieldError{{Field: "payload", Reason: err.Error()}}
	}
	if err := dec.Decode(fields); err != nil {
		return nil, decodeErrors(err)
	}
	return md.Keys, nil
}

// integralFloat refuses a float with a fractional part for an integer
// field. JSON numbers arrive as float64.
func integralFloat(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	var f float64
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		f = reflect.ValueOf(data).Float()
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return nil, fmt.Errorf("%v is not a whole number", data)
	}
	return data, nil
}

// decodeErrors flattens a mapstructure error tree into field errors.
func decodeErrors(err error) []types.FieldError {
	var out []types.FieldError
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case *mapstructure.DecodeError:
			field := e.Name()
			if field == "" {
				field = "payload"
			}
			out = append(out, types.FieldError{Field: field, Reason: e.Unwrap().Error()})
			return
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
			return
		}
		if inner := errors.Unwrap(err); inner != nil {
			walk(inner)
			return
		}
		out = append(out, types.FieldError{Field: "payload", Reason: err.Error()})
	}
	walk(err)
	return out
}

// newValidator returns a validator that reports fields by their
// mapstructure name, falling back to the json name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"mapstructure", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// validationErrors converts validator output into field errors.
func validationErrors(err error) []types.FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []types.FieldError{{Field: "payload", Reason: err.Error()}}
	}
	out := make([]types.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		out = append(out, types.FieldError{Field: fieldPath(fe.Namespace()), Reason: reason})
	}
	return out
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// checkPayload runs the reference checks and, when they pass, the
// kind-specific checks of p.
func checkPayload(p payload, lookup map[string]types.Entity) []types.FieldError {
	if errs := checkRefs(p.refs(), lookup); len(errs) > 0 {
		return errs
	}
	return p.check(lookup)
}

// checkRefs verifies that every reference names an existing entity of the
// expected kind.
func checkRefs(refs []refField, lookup map[string]types.Entity) []types.FieldError {
	var out []types.FieldError
	for _, r := range refs {
		if r.id == "" {
			if r.required {
				out = append(out, types.FieldError{Field: r.field, Reason: "required"})
			}
			continue
		}
		target, ok := lookup[r.id]
		if !ok {
			out = append(out, types.FieldError{Field: r.field, Reason: fmt.Sprintf("unknown %s %q", r.kind, r.id)})
			continue
		}
		if k, _ := types.EntityKind(target); k != r.kind {
			out = append(out, types.FieldError{Field: r.field, Reason: fmt.Sprintf("%q is not a %s", r.id, r.kind)})
		}
	}
	return out
}
