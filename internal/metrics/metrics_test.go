package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/pkg/types"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("wrap: %w", types.ErrNotFound), "not_found"},
		{&types.ValidationError{}, "invalid"},
		{types.ErrDuplicateKey, "duplicate"},
		{&types.ReferentialIntegrityError{}, "referenced"},
		{&events.VetoError{Err: errors.New("no")}, "vetoed"},
		{types.ErrUnknownReferenceKind, "unknown_kind"},
		{errors.New("disk"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Result(tt.err))
		})
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveOperation("add", "range", nil)
	m.ObserveOperation("add", "range", nil)
	m.ObserveOperation("delete", "nomenclature", types.ErrNotFound)
	m.ObserveFailure(events.HandlerFailure{Event: events.ReferenceUpdated, Handler: "audit"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations().WithLabelValues("add", "range", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues("delete", "nomenclature", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures().WithLabelValues(events.ReferenceUpdated, "audit")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("add", "range", nil)
		m.ObserveFailure(events.HandlerFailure{})
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveOperation("update", "storage", nil)
	path := filepath.Join(t.TempDir(), "larder.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `larder_operations_total{kind="storage",op="update",result="ok"} 1`)
}
