package types

// CollectionKey names one repository collection. The set is closed: every
// key the repository loads, saves or scans is listed in CollectionKeys.
type CollectionKey string

// Standard collection keys. The string values match the persisted document
// format, so they must not change.
const (
	NomenclatureKey CollectionKey = "nomenclature_model"
	RangeKey        CollectionKey = "range_model"
	GroupKey        CollectionKey = "group_model"
	StorageKey      CollectionKey = "storage_key"
	ReceiptKey      CollectionKey = "receipt_model"
	TransactionKey  CollectionKey = "transaction_key"
	RestKey         CollectionKey = "rest_key"
	TurnoverKey     CollectionKey = "turnover_key"
)

// CollectionKeys lists every collection key in load/save order. Reference
// collections come first so that documents can resolve against them.
var CollectionKeys = []CollectionKey{
	RangeKey,
	GroupKey,
	StorageKey,
	NomenclatureKey,
	ReceiptKey,
	TransactionKey,
	RestKey,
	TurnoverKey,
}

// IsCollectionKey reports whether key belongs to the closed key set.
func IsCollectionKey(key CollectionKey) bool {
	for _, k := range CollectionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// NewEntity returns an empty entity of the type stored under key.
// Returns ErrUnknownCollection for keys outside the closed set.
func NewEntity(key CollectionKey) (Entity, error) {
	switch key {
	case NomenclatureKey:
		return &Nomenclature{}, nil
	case RangeKey:
		return &Range{}, nil
	case GroupKey:
		return &Category{}, nil
	case StorageKey:
		return &Storage{}, nil
	case ReceiptKey:
		return &Receipt{}, nil
	case TransactionKey, RestKey, TurnoverKey:
		return &Movement{}, nil
	default:
		return nil, ErrUnknownCollection
	}
}
