package types

// Nomenclature is a stock item: something that can be received, stored and
// consumed. It is measured in a Range and filed under a Category.
type Nomenclature struct {
	UniqueCode string `json:"unique_code"`
	Name       string `json:"name"`
	FullName   string `json:"full_name"`
	Range      Ref    `json:"range_id"`
	Category   Ref    `json:"category_id"`
}

func (n *Nomenclature) Code() string { return n.UniqueCode }

func (n *Nomenclature) References() ([]*Ref, error) {
	return []*Ref{&n.Range, &n.Category}, nil
}

// RangeTarget returns the resolved unit of measure, or nil.
func (n *Nomenclature) RangeTarget() *Range {
	r, _ := n.Range.Target().(*Range)
	return r
}

// CategoryTarget returns the resolved category, or nil.
func (n *Nomenclature) CategoryTarget() *Category {
	c, _ := n.Category.Target().(*Category)
	return c
}

// Range is a unit of measure. A derived unit names its Base unit and the
// conversion factor Value (1 kg = 1000 g: kg has base g and value 1000).
type Range struct {
	UniqueCode string `json:"unique_code"`
	Name       string `json:"name"`
	Value      int    `json:"value"`
	Base       Ref    `json:"base_id"`
}

func (r *Range) Code() string { return r.UniqueCode }

func (r *Range) References() ([]*Ref, error) {
	return []*Ref{&r.Base}, nil
}

// BaseTarget returns the resolved base unit, or nil.
func (r *Range) BaseTarget() *Range {
	b, _ := r.Base.Target().(*Range)
	return b
}

// Category groups nomenclature.
type Category struct {
	UniqueCode string `json:"unique_code"`
	Name       string `json:"name"`
}

func (c *Category) Code() string { return c.UniqueCode }

func (c *Category) References() ([]*Ref, error) { return nil, nil }

// Storage is a warehouse or other storage location.
type Storage struct {
	UniqueCode string `json:"unique_code"`
	Name       string `json:"name"`
	Address    string `json:"address"`
}

func (s *Storage) Code() string { return s.UniqueCode }

func (s *Storage) References() ([]*Ref, error) { return nil, nil }
