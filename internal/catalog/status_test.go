package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/pkg/types"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"not found", fmt.Errorf("get: %w", types.ErrNotFound), http.StatusNotFound},
		{"validation", &types.ValidationError{Kind: types.KindRange}, http.StatusBadRequest},
		{"duplicate", types.ErrDuplicateKey, http.StatusBadRequest},
		{"referenced", &types.ReferentialIntegrityError{Key: types.NomenclatureKey, ID: "n"}, http.StatusBadRequest},
		{"unknown kind", types.ErrUnknownReferenceKind, http.StatusBadRequest},
		{"vetoed", &events.VetoError{Err: errors.New("no")}, http.StatusBadRequest},
		{"persistence", types.ErrConfiguration, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestSuccessCode(t *testing.T) {
	assert.Equal(t, http.StatusCreated, SuccessCode(http.MethodPut))
	assert.Equal(t, http.StatusNoContent, SuccessCode(http.MethodDelete))
	assert.Equal(t, http.StatusOK, SuccessCode(http.MethodGet))
	assert.Equal(t, http.StatusOK, SuccessCode(http.MethodPatch))
}
