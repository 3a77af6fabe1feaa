// Package recompute rebuilds the stock balance collection (rest_key) from
// transactions.
//
// A Rebuilder subscribes to reference_updated and lock_date_changed. Each
// rebuild groups the transactions dated on or before the lock date by
// nomenclature, storage and unit and writes one balance per group. A zero
// lock date takes every transaction.
package recompute

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/internal/metrics"
	"github.com/mesh-intelligence/larder/internal/repository"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// HandlerName identifies the rebuilder on the bus.
const HandlerName = "recompute"

// restNamespace seeds the deterministic balance codes.
var restNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("larder:rest_key"))

// Rebuilder maintains rest_key.
type Rebuilder struct {
	mu       sync.Mutex
	repo     *repository.Repository
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	lockDate time.Time
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Rebuilder) { r.log = l }
}

// WithMetrics records each rebuild as a "recompute" operation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rebuilder) { r.metrics = m }
}

// WithLockDate sets the initial lock date.
func WithLockDate(t time.Time) Option {
	return func(r *Rebuilder) { r.lockDate = t }
}

// New returns a rebuilder over repo.
func New(repo *repository.Repository, opts ...Option) *Rebuilder {
	r := &Rebuilder{repo: repo}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	return r
}

// Subscribe registers the rebuilder on bus.
func (r *Rebuilder) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.ReferenceUpdated, HandlerName, func(events.Event) error {
		_, err := r.Rebuild()
		return err
	})
	bus.Subscribe(events.LockDateChanged, HandlerName, func(evt events.Event) error {
		if p, ok := evt.Payload.(events.LockDatePayload); ok {
			r.mu.Lock()
			r.lockDate = p.Current
			r.mu.Unlock()
		}
		_, err := r.Rebuild()
		return err
	})
}

// LockDate returns the lock date used by the next rebuild.
func (r *Rebuilder) LockDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lockDate
}

type groupKey struct {
	nomenclature string
	storage      string
	unit         string
}

type balance struct {
	first *types.Movement
	date  time.Time
	value decimal.Decimal
}

// Rebuild replaces rest_key with balances computed from transaction_key and
// returns the number of balances written.
func (r *Rebuilder) Rebuild() (n int, err error) {
	defer func() { r.metrics.ObserveOperation("recompute", "", err) }()

	lock := r.LockDate()
	log := r.log.WithField("lock_date", lock.Format(time.DateOnly))
	log.Debug("recompute.start")

	groups := make(map[groupKey]*balance)
	for _, e := range r.repo.Get(types.TransactionKey) {
		tx, ok := e.(*types.Movement)
		if !ok || !included(tx.Date, lock) {
			continue
		}
		k := groupKey{nomenclature: tx.Nomenclature.ID, storage: tx.Storage.ID, unit: tx.Unit.ID}
		b, ok := groups[k]
		if !ok {
			b = &balance{first: tx}
			groups[k] = b
		}
		b.value = b.value.Add(tx.Value)
		if tx.Date.After(b.date) {
			b.date = tx.Date
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.nomenclature != b.nomenclature {
			return a.nomenclature < b.nomenclature
		}
		if a.storage != b.storage {
			return a.storage < b.storage
		}
		return a.unit < b.unit
	})

	rests := make([]types.Entity, 0, len(keys))
	for _, k := range keys {
		b := groups[k]
		date := b.date
		if !lock.IsZero() {
			date = lock
		}
		rests = append(rests, &types.Movement{
			UniqueCode:   restCode(k),
			Date:         date,
			Nomenclature: b.first.Nomenclature,
			Unit:         b.first.Unit,
			Storage:      b.first.Storage,
			Value:        b.value,
		})
	}
	if err := r.repo.Put(types.RestKey, rests); err != nil {
		return 0, err
	}
	log.WithField("balances", len(rests)).Info("recompute.done")
	return len(rests), nil
}

// included reports whether a transaction dated at falls on or before the
// lock date. The whole lock day counts.
func included(at, lock time.Time) bool {
	if lock.IsZero() {
		return true
	}
	y, m, d := lock.Date()
	cutoff := time.Date(y, m, d+1, 0, 0, 0, 0, lock.Location())
	return at.Before(cutoff)
}

func restCode(k groupKey) string {
	return uuid.NewSHA1(restNamespace, []byte(k.nomenclature+"\x00"+k.storage+"\x00"+k.unit)).String()
}
