// Package catalog is the consistency engine of the larder: add, update and
// delete of reference entities with referential integrity checks, update
// cascades and event publication.
package catalog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/internal/metrics"
	"github.com/mesh-intelligence/larder/internal/repository"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// MaxReportedHolders caps the holders named by a ReferentialIntegrityError.
const MaxReportedHolders = 5

// Service serializes every operation on the repository under one mutex.
// Post-commit events are published synchronously once the mutex is released
// and before the operation returns, so their handlers may call back into the
// service. reference_delete_validation handlers run with the mutex held and
// must not.
type Service struct {
	mu       sync.RWMutex
	pending  []events.Event
	repo     *repository.Repository
	bus      *events.Bus
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
	lockDate time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the operation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNow overrides the clock used to date records.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLockDate sets the initial lock date.
func WithLockDate(t time.Time) Option {
	return func(s *Service) { s.lockDate = t }
}

// New returns a service operating on repo and publishing on bus.
func New(repo *repository.Repository, bus *events.Bus, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		bus:      bus,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() *repository.Repository { return s.repo }

// Bus returns the event bus.
func (s *Service) Bus() *events.Bus { return s.bus }

// Get returns the entity of the given kind with unique_code id.
func (s *Service) Get(kindName, id string) (types.Entity, error) {
	kind, err := types.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.repo.Find(kind.Key(), id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", types.ErrNotFound, kind, id)
	}
	return e, nil
}

// List returns every entity of the given kind in insertion order.
func (s *Service) List(kindName string) ([]types.Entity, error) {
	kind, err := types.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.Get(kind.Key()), nil
}

// Add validates payload against the shape of the named kind and appends the
// resulting entity. A missing unique_code is generated. Publishes
// reference_added.
func (s *Service) Add(kindName string, payload map[string]any) (e types.Entity, err error) {
	kind, err := types.ParseKind(kindName)
	if err != nil {
		s.metrics.ObserveOperation("add", "", err)
		return nil, err
	}
	defer func() { s.metrics.ObserveOperation("add", kind.String(), err) }()

	s.mu.Lock()
	defer s.unlockAndPublish()

	p := newPayload(kind, nil)
	if _, fieldErrs := decodePayload(payload, p); len(fieldErrs) > 0 {
		return nil, &types.ValidationError{Kind: kind, Fields: fieldErrs}
	}
	if p.code() == "" {
		p.setCode(types.NewCode())
	}
	if fieldErrs := validationErrors(s.validate.Struct(p)); len(fieldErrs) > 0 {
		return nil, &types.ValidationError{Kind: kind, Fields: fieldErrs}
	}

	key := kind.Key()
	if err := s.checkUnused(p.code()); err != nil {
		return nil, err
	}

	lookup := s.repo.Lookup()
	if fieldErrs := checkPayload(p, lookup); len(fieldErrs) > 0 {
		return nil, &types.ValidationError{Kind: kind, Fields: fieldErrs}
	}

	e = kind.New()
	p.apply(e, lookup)
	if err := s.repo.Append(key, e); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"kind": kind.String(), "id": e.Code()}).Debug("reference added")

	s.publish(events.Event{
		Name:    events.ReferenceAdded,
		Payload: events.ReferencePayload{Kind: kind, Key: key, Entity: e},
	})
	return e, nil
}

// Update patches the entity of the given kind with fields. Unknown field
// names are ignored; unique_code cannot change. Every reference to the
// entity anywhere in the repository is re-pointed at the live entity.
// Publishes reference_updated with the applied field names, which are also
// returned.
func (s *Service) Update(kindName, id string, fields map[string]any) (e types.Entity, applied []string, err error) {
	kind, err := types.ParseKind(kindName)
	if err != nil {
		s.metrics.ObserveOperation("update", "", err)
		return nil, nil, err
	}
	defer func() { s.metrics.ObserveOperation("update", kind.String(), err) }()

	s.mu.Lock()
	defer s.unlockAndPublish()

	key := kind.Key()
	target, ok := s.repo.Find(key, id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s %q", types.ErrNotFound, kind, id)
	}

	p := newPayload(kind, target)
	keys, fieldErrs := decodePayload(fields, p)
	if len(fieldErrs) > 0 {
		return nil, nil, &types.ValidationError{Kind: kind, Fields: fieldErrs}
	}
	if p.code() != target.Code() {
		return nil, nil, &types.ValidationError{Kind: kind, Fields: []types.FieldError{{Field: "unique_code", Reason: "is immutable"}}}
	}
	if fieldErrs := validationErrors(s.validate.Struct(p)); len(fieldErrs) > 0 {
		return nil, nil, &types.ValidationError{Kind: kind, Fields: fieldErrs}
	}
	lookup := s.repo.Lookup()
	if fieldErrs := checkPayload(p, lookup); len(fieldErrs) > 0 {
		return nil, nil, &types.ValidationError{Kind: kind, Fields: fieldErrs}
	}

	p.apply(target, lookup)
	for _, k := range keys {
		if k != "unique_code" {
			applied = append(applied, k)
		}
	}
	rebound := s.cascade(target)
	s.log.WithFields(logrus.Fields{
		"kind":    kind.String(),
		"id":      id,
		"fields":  applied,
		"rebound": rebound,
	}).Debug("reference updated")

	s.publish(events.Event{
		Name:    events.ReferenceUpdated,
		Payload: events.ReferencePayload{Kind: kind, Key: key, Entity: target, Fields: applied},
	})
	return target, applied, nil
}

// Delete removes the entity of the given kind unless something in the
// repository still references it or a reference_delete_validation handler
// vetoes. Either the entity is removed and reference_deleted is published,
// or nothing changes.
func (s *Service) Delete(kindName, id string) (err error) {
	kind, err := types.ParseKind(kindName)
	if err != nil {
		s.metrics.ObserveOperation("delete", "", err)
		return err
	}
	defer func() { s.metrics.ObserveOperation("delete", kind.String(), err) }()

	s.mu.Lock()
	defer s.unlockAndPublish()

	key := kind.Key()
	target, ok := s.repo.Find(key, id)
	if !ok {
		return fmt.Errorf("%w: %s %q", types.ErrNotFound, kind, id)
	}

	if holders, total := s.dependents(target); total > 0 {
		return &types.ReferentialIntegrityError{Key: key, ID: id, Holders: holders, Total: total}
	}

	payload := events.ReferencePayload{Kind: kind, Key: key, Entity: target}
	if err := s.bus.Validate(events.Event{Name: events.ReferenceDeleteValidation, Payload: payload}); err != nil {
		return err
	}

	s.repo.Remove(key, func(e types.Entity) bool { return e == target })
	s.log.WithFields(logrus.Fields{"kind": kind.String(), "id": id}).Debug("reference deleted")

	s.publish(events.Event{Name: events.ReferenceDeleted, Payload: payload})
	return nil
}

// checkUnused returns ErrDuplicateKey when any collection already holds an
// entity with unique_code id.
func (s *Service) checkUnused(id string) error {
	for _, key := range types.CollectionKeys {
		if _, exists := s.repo.Find(key, id); exists {
			return fmt.Errorf("%w: %q is already used in %s", types.ErrDuplicateKey, id, key)
		}
	}
	return nil
}

// dependents scans every collection for entities other than target that
// hold a reference to it. It returns the first MaxReportedHolders holders
// and the total count. Malformed holders are logged and their well-formed
// references still count.
func (s *Service) dependents(target types.Entity) ([]types.Holder, int) {
	id := target.Code()
	var holders []types.Holder
	total := 0
	for _, key := range types.CollectionKeys {
		for _, e := range s.repo.Get(key) {
			if e == target {
				continue
			}
			refs, err := e.References()
			if err != nil {
				s.logMalformed(key, e, err)
			}
			for _, ref := range refs {
				if !ref.Matches(id) {
					continue
				}
				total++
				if len(holders) < MaxReportedHolders {
					holders = append(holders, types.Holder{Key: key, ID: e.Code()})
				}
				break
			}
		}
	}
	return holders, total
}

// cascade points every reference to target's id at the live target and
// reports how many references were rebound. Running it twice has no further
// effect.
func (s *Service) cascade(target types.Entity) int {
	id := target.Code()
	rebound := 0
	for _, key := range types.CollectionKeys {
		for _, e := range s.repo.Get(key) {
			refs, err := e.References()
			if err != nil {
				s.logMalformed(key, e, err)
			}
			for _, ref := range refs {
				if ref.Matches(id) && ref.Target() != target && ref.Bind(target) {
					rebound++
				}
			}
		}
	}
	return rebound
}

func (s *Service) logMalformed(key types.CollectionKey, e types.Entity, err error) {
	s.log.WithFields(logrus.Fields{
		"key": key,
		"id":  e.Code(),
	}).WithError(err).Warn("malformed holder")
}

// notify publishes a post-commit event. Handler failures are logged and
// counted by the bus; they never fail the operation.
func (s *Service) notify(evt events.Event) []events.HandlerFailure {
	return s.bus.Notify(evt)
}

// publish queues a post-commit event. Requires s.mu held for writing.
func (s *Service) publish(evt events.Event) {
	s.pending = append(s.pending, evt)
}

// unlockAndPublish releases s.mu and then notifies the queued events.
func (s *Service) unlockAndPublish() {
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, evt := range queued {
		s.notify(evt)
	}
}

// Log publishes a log event carrying level, message and meta.
func (s *Service) Log(level, message string, meta map[string]any) {
	s.notify(events.Event{
		Name:    events.Log,
		Payload: events.LogPayload{Level: level, Message: message, Meta: meta},
	})
}

// LockDate returns the current lock date.
func (s *Service) LockDate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockDate
}

// ChangeLockDate moves the date up to which stock movements are closed and
// publishes lock_date_changed.
func (s *Service) ChangeLockDate(date time.Time) (err error) {
	defer func() { s.metrics.ObserveOperation("lock_date", "", err) }()
	if date.IsZero() {
		return &types.ValidationError{Fields: []types.FieldError{{Field: "lock_date", Reason: "required"}}}
	}

	s.mu.Lock()
	defer s.unlockAndPublish()
	previous := s.lockDate
	s.lockDate = date
	s.log.WithFields(logrus.Fields{"previous": previous, "current": date}).Info("lock date changed")

	s.publish(events.Event{
		Name:    events.LockDateChanged,
		Payload: events.LockDatePayload{Previous: previous, Current: date},
	})
	return nil
}

// Load replaces the repository contents from its backing. See
// repository.Repository.Load.
func (s *Service) Load() (loaded bool, err error) {
	defer func() { s.metrics.ObserveOperation("load", "", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Load()
}

// Save writes the repository to its backing.
func (s *Service) Save() (err error) {
	defer func() { s.metrics.ObserveOperation("save", "", err) }()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.Save()
}
