package backing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "larder.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)

	_, err = s.Read()
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, s.Write([]byte(`{"range_model":[]}`)))
	require.NoError(t, s.Write([]byte(`{"range_model":[{}]}`)))
	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"range_model":[{}]}`, string(got))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err = reopened.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"range_model":[{}]}`, string(got))
}
