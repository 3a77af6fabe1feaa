package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{input: "nomenclature", want: KindNomenclature},
		{input: "  Nomenclature ", want: KindNomenclature},
		{input: "nomenclatures", want: KindNomenclature},
		{input: "range", want: KindRange},
		{input: "unit", want: KindRange},
		{input: "UNITS", want: KindRange},
		{input: "group", want: KindCategory},
		{input: "category", want: KindCategory},
		{input: "groups", want: KindCategory},
		{input: "storage", want: KindStorage},
		{input: "warehouse", want: KindStorage},
		{input: "Warehouses", want: KindStorage},
		{input: "", wantErr: true},
		{input: "   ", wantErr: true},
		{input: "nomen", wantErr: true},
		{input: "receipt", wantErr: true},
		{input: "transaction", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownReferenceKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKindAmbiguousPrefix(t *testing.T) {
	saved := kindNames
	t.Cleanup(func() { kindNames = saved })
	kindNames = append(kindNames, struct {
		name string
		kind Kind
	}{"stor", KindCategory})

	// Exact matches still win.
	got, err := ParseKind("storage")
	require.NoError(t, err)
	assert.Equal(t, KindStorage, got)

	_, err = ParseKind("storages")
	assert.ErrorIs(t, err, ErrUnknownReferenceKind)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestKindTableIsExhaustive(t *testing.T) {
	for _, k := range Kinds {
		t.Run(k.String(), func(t *testing.T) {
			assert.True(t, k.Valid())
			assert.True(t, IsCollectionKey(k.Key()))
			require.NotNil(t, k.New())

			got, ok := EntityKind(k.New())
			assert.True(t, ok)
			assert.Equal(t, k, got)

			back, ok := KindOf(k.Key())
			assert.True(t, ok)
			assert.Equal(t, k, back)

			parsed, err := ParseKind(k.String())
			require.NoError(t, err)
			assert.Equal(t, k, parsed)
		})
	}
}

func TestInvalidKind(t *testing.T) {
	var k Kind
	assert.False(t, k.Valid())
	assert.Nil(t, k.New())
	assert.Empty(t, k.Key())
	assert.Equal(t, "kind(0)", k.String())

	_, ok := KindOf(ReceiptKey)
	assert.False(t, ok)
	_, ok = EntityKind(&Movement{})
	assert.False(t, ok)
}

func TestNewEntity(t *testing.T) {
	for _, key := range CollectionKeys {
		e, err := NewEntity(key)
		require.NoError(t, err, key)
		assert.NotNil(t, e)
	}
	_, err := NewEntity("pantry")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestNewCode(t *testing.T) {
	a, b := NewCode(), NewCode()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
