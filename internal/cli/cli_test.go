package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/internal/audit"
	"github.com/mesh-intelligence/larder/internal/config"
	"github.com/mesh-intelligence/larder/internal/paths"
	"github.com/mesh-intelligence/larder/pkg/types"
)

type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	return env{configDir: filepath.Join(root, "config"), dataDir: filepath.Join(root, "data")}
}

// run executes larder with the environment's directories and returns stdout.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "larder %s", strings.Join(args, " "))
	return out
}

func (e env) seed(t *testing.T) {
	t.Helper()
	e.mustRun(t, "add", "range", `{"unique_code":"kg","name":"kilogram","value":1}`)
	e.mustRun(t, "add", "group", `{"unique_code":"grp","name":"grocery"}`)
	e.mustRun(t, "add", "warehouse", `{"unique_code":"st","name":"main","address":"1 Road"}`)
	e.mustRun(t, "add", "nomenclature", `{"unique_code":"N1","name":"flour","range_id":"kg","category_id":"grp"}`)
}

func TestVersion(t *testing.T) {
	out := newEnv(t).mustRun(t, "version")
	assert.Contains(t, out, "larder v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "init")
	assert.Contains(t, out, "larder initialized")
	assert.FileExists(t, filepath.Join(e.configDir, config.FileExt))
	assert.FileExists(t, filepath.Join(e.dataDir, paths.DocumentFile))

	out = e.mustRun(t, "init")
	assert.Contains(t, out, "already initialized")
}

func TestInitWithSQLiteDriver(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, config.FileExt), []byte("backing:\n  driver: sqlite\n"), 0o644))

	e.mustRun(t, "init")
	assert.FileExists(t, filepath.Join(e.dataDir, paths.DatabaseFile))

	e.seed(t)
	out := e.mustRun(t, "get", "unit", "kg")
	assert.Contains(t, out, `"name": "kilogram"`)
}

func TestKinds(t *testing.T) {
	out := newEnv(t).mustRun(t, "kinds")
	assert.Contains(t, out, "nomenclature")
	assert.Contains(t, out, string(types.RangeKey))
	assert.Contains(t, out, string(types.TransactionKey))
}

func TestReferenceLifecycle(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	var n types.Nomenclature
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "get", "nomenclature", "N1")), &n))
	assert.Equal(t, "flour", n.Name)
	assert.Equal(t, "kg", n.Range.ID)

	var units []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "list", "units")), &units))
	require.Len(t, units, 1)
	assert.Equal(t, "kg", units[0]["unique_code"])

	out := e.mustRun(t, "update", "nomenclature", "N1", `{"name":"wheat flour"}`)
	assert.Contains(t, out, `"wheat flour"`)
	assert.Contains(t, out, `"applied"`)

	_, err := e.run(t, "delete", "range", "kg")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrReferentialIntegrity)
	assert.Equal(t, exitUserError, exitCode(err))

	e.mustRun(t, "delete", "nomenclature", "N1")
	out = e.mustRun(t, "delete", "range", "kg")
	assert.Contains(t, out, "deleted range kg")

	_, err = e.run(t, "get", "range", "kg")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddFromFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "range.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"gram","value":1}`), 0o644))

	var r types.Range
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "add", "range", "--file", path)), &r))
	assert.Equal(t, "gram", r.Name)
	assert.NotEmpty(t, r.UniqueCode)
}

func TestRequestErrors(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	tests := []struct {
		name   string
		args   []string
		target error
	}{
		{name: "unknown kind", args: []string{"list", "spaceship"}, target: types.ErrUnknownReferenceKind},
		{name: "duplicate", args: []string{"add", "range", `{"unique_code":"kg","name":"again","value":1}`}, target: types.ErrDuplicateKey},
		{name: "invalid payload", args: []string{"add", "nomenclature", `{"name":"x","range_id":"missing","category_id":"grp"}`}, target: types.ErrValidation},
		{name: "unknown collection", args: []string{"record", "pantry", `{}`}, target: types.ErrUnknownCollection},
		{name: "derived balances", args: []string{"record", "rest_key", `{"nomenclature_id":"N1","value":"1"}`}, target: types.ErrUnknownCollection},
		{name: "code used by another kind", args: []string{"add", "category", `{"unique_code":"kg","name":"clash"}`}, target: types.ErrDuplicateKey},
		{name: "bad lock date", args: []string{"lock-date", "tomorrow"}, target: types.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, exitUserError, exitCode(err))
		})
	}

	_, err := e.run(t, "add", "range", `not json`)
	assert.Error(t, err)
}

func TestRecordsAndLockDate(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	e.mustRun(t, "record", "transaction_key",
		`{"unique_code":"T1","date":"2024-03-01T09:00:00Z","nomenclature_id":"N1","unit_id":"kg","storage_id":"st","value":"2.5"}`)
	e.mustRun(t, "record", "transaction_key",
		`{"unique_code":"T2","date":"2024-03-05T09:00:00Z","nomenclature_id":"N1","unit_id":"kg","storage_id":"st","value":"4"}`)

	var txs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "records", "transaction_key")), &txs))
	assert.Len(t, txs, 2)

	assert.Contains(t, e.mustRun(t, "lock-date"), "not set")

	out := e.mustRun(t, "lock-date", "2024-03-02")
	assert.Contains(t, out, "lock date set to 2024-03-02 (1 balances)")
	assert.Equal(t, "2024-03-02\n", e.mustRun(t, "lock-date"), "lock date persists in config.yaml")

	var rests []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "records", "rest_key")), &rests))
	require.Len(t, rests, 1)
	assert.Equal(t, "2.5", rests[0]["value"])

	_, err := e.run(t, "delete", "storage", "st")
	assert.ErrorIs(t, err, types.ErrReferentialIntegrity)
}

func TestAuditJournal(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	e.mustRun(t, "update", "range", "kg", `{"name":"kilo"}`)

	assert.FileExists(t, filepath.Join(e.dataDir, paths.AuditFile))

	var entries []audit.Entry
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "audit")), &entries))
	require.Len(t, entries, 5)
	assert.Equal(t, audit.ActionUpdated, entries[4].Action)
	assert.Equal(t, "kg", entries[4].ID)

	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "audit", "--last", "2")), &entries))
	assert.Len(t, entries, 2)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, exitUserError, exitCode(types.ErrNotFound))
	assert.Equal(t, exitSysError, exitCode(systemErr(errors.New("disk full"))))
	assert.Equal(t, exitSysError, exitCode(requestErr(errors.New("disk full"))))
	assert.Equal(t, exitUserError, exitCode(requestErr(types.ErrVetoed)))
	assert.NoError(t, requestErr(nil))
}

func TestBrokenConfigIsSystemError(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, config.FileExt), []byte("backing:\n  driver: ftp\n"), 0o644))

	_, err := e.run(t, "kinds")
	require.NoError(t, err, "kinds needs no repository")

	_, err = e.run(t, "list", "range")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.Equal(t, exitSysError, exitCode(err))
}
