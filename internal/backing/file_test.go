package backing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReadMissing(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "repository.json"))
	require.NoError(t, err)

	_, err = f.Read()
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "repository.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, f.Write([]byte(`{"a":1}`)))
	require.NoError(t, f.Write([]byte(`{"a":2}`)))

	got, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileRequiresPath(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "default driver", cfg: Config{Path: filepath.Join(dir, "a.json")}, want: "file:"},
		{name: "file", cfg: Config{Driver: DriverFile, Path: filepath.Join(dir, "b.json")}, want: "file:"},
		{name: "sqlite", cfg: Config{Driver: DriverSQLite, Path: filepath.Join(dir, "c.db")}, want: "sqlite:"},
		{name: "unknown", cfg: Config{Driver: "tape"}, wantErr: true},
		{name: "s3 without bucket", cfg: Config{Driver: DriverS3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(t.Context(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, b.Name(), tt.want)
			if s, ok := b.(*SQLite); ok {
				s.Close()
			}
		})
	}
}
