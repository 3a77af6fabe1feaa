package recompute

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/internal/catalog"
	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/internal/metrics"
	"github.com/mesh-intelligence/larder/internal/repository"
	"github.com/mesh-intelligence/larder/pkg/types"
)

func day(d int, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func tx(code, nom, storage string, at time.Time, value string) *types.Movement {
	return &types.Movement{
		UniqueCode:   code,
		Date:         at,
		Nomenclature: types.RefTo(nom),
		Unit:         types.RefTo("kg"),
		Storage:      types.RefTo(storage),
		Value:        decimal.RequireFromString(value),
	}
}

func seededRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo := repository.New()
	for _, m := range []*types.Movement{
		tx("T1", "N1", "st", day(1, 9), "10"),
		tx("T2", "N1", "st", day(2, 18), "-2.5"),
		tx("T3", "N2", "st", day(2, 10), "4"),
		tx("T4", "N1", "cellar", day(3, 8), "1"),
		tx("T5", "N1", "st", day(5, 8), "100"),
	} {
		require.NoError(t, repo.Append(types.TransactionKey, m))
	}
	return repo
}

func rests(t *testing.T, repo *repository.Repository) map[string]*types.Movement {
	t.Helper()
	out := make(map[string]*types.Movement)
	for _, e := range repo.Get(types.RestKey) {
		m, ok := e.(*types.Movement)
		require.True(t, ok)
		out[m.Nomenclature.ID+"@"+m.Storage.ID] = m
	}
	return out
}

func TestRebuildWithoutLockDateTakesEverything(t *testing.T) {
	repo := seededRepo(t)
	r := New(repo)

	n, err := r.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := rests(t, repo)
	assert.True(t, decimal.RequireFromString("107.5").Equal(got["N1@st"].Value))
	assert.True(t, decimal.RequireFromString("4").Equal(got["N2@st"].Value))
	assert.True(t, decimal.RequireFromString("1").Equal(got["N1@cellar"].Value))
	assert.Equal(t, day(5, 8), got["N1@st"].Date, "latest transaction date")
	assert.Equal(t, "kg", got["N1@st"].Unit.ID)
}

func TestRebuildHonoursLockDay(t *testing.T) {
	repo := seededRepo(t)
	r := New(repo, WithLockDate(day(2, 0)))

	n, err := r.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := rests(t, repo)
	assert.True(t, decimal.RequireFromString("7.5").Equal(got["N1@st"].Value), "T2 late on the lock day is included")
	assert.Contains(t, got, "N2@st")
	assert.NotContains(t, got, "N1@cellar")
	assert.Equal(t, day(2, 0), got["N1@st"].Date)
}

func TestRebuildIsDeterministic(t *testing.T) {
	repo := seededRepo(t)
	r := New(repo)

	_, err := r.Rebuild()
	require.NoError(t, err)
	first, err := repo.Snapshot()
	require.NoError(t, err)

	_, err = r.Rebuild()
	require.NoError(t, err)
	second, err := repo.Snapshot()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	codes := map[string]bool{}
	for _, e := range repo.Get(types.RestKey) {
		codes[e.Code()] = true
	}
	assert.Len(t, codes, 3)
}

func TestRebuildReplacesStaleBalances(t *testing.T) {
	repo := seededRepo(t)
	require.NoError(t, repo.Append(types.RestKey, tx("old", "N9", "st", day(1, 0), "1")))

	_, err := New(repo).Rebuild()
	require.NoError(t, err)
	assert.NotContains(t, rests(t, repo), "N9@st")
}

func TestRebuildMetrics(t *testing.T) {
	m := metrics.New()
	_, err := New(seededRepo(t), WithMetrics(m)).Rebuild()
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues("recompute", "", "ok")))
}

func TestSubscribedToCatalogEvents(t *testing.T) {
	repo := repository.New()
	bus := events.NewBus()
	r := New(repo)
	r.Subscribe(bus)
	svc := catalog.New(repo, bus, catalog.WithNow(func() time.Time { return day(4, 12) }))

	_, err := svc.Add("range", map[string]any{"unique_code": "kg", "name": "kilogram", "value": 1})
	require.NoError(t, err)
	_, err = svc.Add("category", map[string]any{"unique_code": "grp", "name": "grocery"})
	require.NoError(t, err)
	_, err = svc.Add("storage", map[string]any{"unique_code": "st", "name": "main"})
	require.NoError(t, err)
	_, err = svc.Add("nomenclature", map[string]any{"unique_code": "N1", "name": "flour", "range_id": "kg", "category_id": "grp"})
	require.NoError(t, err)
	require.NoError(t, svc.AddRecord(types.TransactionKey, tx("T1", "N1", "st", day(1, 9), "3")))
	require.NoError(t, svc.AddRecord(types.TransactionKey, tx("T2", "N1", "st", day(3, 9), "2")))

	require.NoError(t, svc.ChangeLockDate(day(2, 0)))
	assert.Equal(t, day(2, 0), r.LockDate())
	got := rests(t, repo)
	require.Contains(t, got, "N1@st")
	assert.True(t, decimal.RequireFromString("3").Equal(got["N1@st"].Value))
	assert.NotNil(t, got["N1@st"].NomenclatureTarget(), "balance keeps the resolved nomenclature")

	require.NoError(t, svc.ChangeLockDate(day(3, 0)))
	assert.True(t, decimal.RequireFromString("5").Equal(rests(t, repo)["N1@st"].Value))

	require.NoError(t, repo.Put(types.RestKey, nil))
	_, _, err = svc.Update("nomenclature", "N1", map[string]any{"name": "wheat flour"})
	require.NoError(t, err)
	assert.Len(t, repo.Get(types.RestKey), 1, "reference update rebuilds balances")

	// Balances come only from transactions, so a rebuild has nothing to lose.
	err = svc.AddRecord(types.RestKey, tx("manual", "N1", "st", day(1, 9), "99"))
	assert.ErrorIs(t, err, types.ErrUnknownCollection)
	_, _, err = svc.Update("storage", "st", map[string]any{"address": "2 Road"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5").Equal(rests(t, repo)["N1@st"].Value))
}
