// Package repository holds the in-memory collections of the catalog and
// persists them as a single JSON document through a backing.
//
// The collection key set is closed (types.CollectionKeys). Load populates
// every key, Save serializes every key, and reads of an unseen key yield an
// empty collection.
package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/internal/backing"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Repository maps each collection key to an ordered sequence of entities.
type Repository struct {
	mu          sync.RWMutex
	backing     backing.Backing
	log         logrus.FieldLogger
	collections map[types.CollectionKey][]types.Entity
}

// Option configures a Repository.
type Option func(*Repository)

// WithBacking sets the resource used by Load and Save.
func WithBacking(b backing.Backing) Option {
	return func(r *Repository) { r.backing = b }
}

// WithLogger sets the logger used to report malformed holders.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Repository) { r.log = l }
}

// New returns a repository with empty collections.
func New(opts ...Option) *Repository {
	r := &Repository{}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	r.collections = emptyCollections()
	return r
}

func emptyCollections() map[types.CollectionKey][]types.Entity {
	c := make(map[types.CollectionKey][]types.Entity, len(types.CollectionKeys))
	for _, key := range types.CollectionKeys {
		c[key] = []types.Entity{}
	}
	return c
}

// Backing returns the configured backing, or nil.
func (r *Repository) Backing() backing.Backing {
	return r.backing
}

// Initialize replaces every collection with an empty one.
func (r *Repository) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = emptyCollections()
}

// Get returns a copy of the collection stored under key. The entities are
// the live instances. An unseen key yields an empty slice.
func (r *Repository) Get(key types.CollectionKey) []types.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.collections[key]
	out := make([]types.Entity, len(src))
	copy(out, src)
	return out
}

// Put replaces the collection stored under key.
func (r *Repository) Put(key types.CollectionKey, entities []types.Entity) error {
	if !types.IsCollectionKey(key) {
		return fmt.Errorf("%w: %q", types.ErrUnknownCollection, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := make([]types.Entity, len(entities))
	copy(c, entities)
	r.collections[key] = c
	return nil
}

// Append adds e to the end of the collection stored under key.
func (r *Repository) Append(key types.CollectionKey, e types.Entity) error {
	if !types.IsCollectionKey(key) {
		return fmt.Errorf("%w: %q", types.ErrUnknownCollection, key)
	}
	if e == nil {
		return errors.New("cannot append nil entity")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[key] = append(r.collections[key], e)
	return nil
}

// Remove deletes every entity of the collection for which match returns
// true and reports how many were removed.
func (r *Repository) Remove(key types.CollectionKey, match func(types.Entity) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.collections[key]
	kept := make([]types.Entity, 0, len(src))
	for _, e := range src {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	removed := len(src) - len(kept)
	if removed > 0 {
		r.collections[key] = kept
	}
	return removed
}

// Find returns the entity with the given unique_code in the collection.
func (r *Repository) Find(key types.CollectionKey, id string) (types.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.collections[key] {
		if e.Code() == id {
			return e, true
		}
	}
	return nil, false
}

// Lookup builds a fresh index of every entity across all collections by
// unique_code. Codes are unique across collections once loaded through Load
// or the catalog; for entities appended directly, collections are indexed in
// load order and the first holder of a code wins.
func (r *Repository) Lookup() map[string]types.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked()
}

func (r *Repository) lookupLocked() map[string]types.Entity {
	lookup := make(map[string]types.Entity)
	for _, key := range types.CollectionKeys {
		for _, e := range r.collections[key] {
			if _, seen := lookup[e.Code()]; !seen {
				lookup[e.Code()] = e
			}
		}
	}
	return lookup
}

// ResolveReferences points every reference held in the repository at the
// live entity with its id. Malformed holders are logged and returned; their
// well-formed references are still resolved.
func (r *Repository) ResolveReferences() []types.Holder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked()
}

func (r *Repository) resolveLocked() []types.Holder {
	lookup := r.lookupLocked()
	var malformed []types.Holder
	for _, key := range types.CollectionKeys {
		for _, e := range r.collections[key] {
			refs, err := e.References()
			if err != nil {
				r.log.WithFields(logrus.Fields{
					"key": key,
					"id":  e.Code(),
				}).WithError(err).Warn("malformed holder")
				malformed = append(malformed, types.Holder{Key: key, ID: e.Code()})
			}
			for _, ref := range refs {
				ref.Resolve(lookup)
			}
		}
	}
	return malformed
}

// Snapshot serializes every collection of the closed key set, empty
// collections as [].
func (r *Repository) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.encodeLocked()
}

func (r *Repository) encodeLocked() ([]byte, error) {
	doc := make(map[types.CollectionKey][]types.Entity, len(types.CollectionKeys))
	for _, key := range types.CollectionKeys {
		entities := r.collections[key]
		if entities == nil {
			entities = []types.Entity{}
		}
		doc[key] = entities
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding repository: %w", err)
	}
	return data, nil
}

// Save writes the whole repository to the backing.
// Returns ErrConfiguration when no backing is configured.
func (r *Repository) Save() error {
	if r.backing == nil {
		return types.ErrConfiguration
	}
	r.mu.RLock()
	data, err := r.encodeLocked()
	r.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := r.backing.Write(data); err != nil {
		return fmt.Errorf("saving to %s: %w", r.backing.Name(), err)
	}
	return nil
}

// Load replaces the repository contents with the document read from the
// backing and resolves every reference. A missing backing resource leaves
// the repository initialized and empty and reports loaded=false.
// Returns ErrConfiguration when no backing is configured and ErrFormat when
// the document or one of its entries cannot be decoded; on error the
// current contents are kept.
func (r *Repository) Load() (bool, error) {
	if r.backing == nil {
		return false, types.ErrConfiguration
	}
	data, err := r.backing.Read()
	if errors.Is(err, backing.ErrNotExist) {
		r.Initialize()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading from %s: %w", r.backing.Name(), err)
	}

	collections, err := decode(data)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = collections
	r.resolveLocked()
	return true, nil
}

// decode parses a repository document. Unknown keys are ignored; missing or
// null keys yield empty collections.
func decode(data []byte) (map[types.CollectionKey][]types.Entity, error) {
	var doc map[types.CollectionKey]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFormat, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not an object", types.ErrFormat)
	}

	collections := emptyCollections()
	for _, key := range types.CollectionKeys {
		raw, ok := doc[key]
		if !ok || isNull(raw) {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrFormat, key, err)
		}
		for i, entry := range entries {
			if isNull(entry) {
				return nil, fmt.Errorf("%w: %s[%d] is null", types.ErrFormat, key, i)
			}
			e, err := types.NewEntity(key)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(entry, e); err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", types.ErrFormat, key, i, err)
			}
			collections[key] = append(collections[key], e)
		}
	}
	if err := checkUniqueCodes(collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// checkUniqueCodes rejects a unique_code held by two entities, in the same
// collection or in different ones.
func checkUniqueCodes(collections map[types.CollectionKey][]types.Entity) error {
	owner := make(map[string]types.CollectionKey)
	for _, key := range types.CollectionKeys {
		for i, e := range collections[key] {
			code := e.Code()
			if code == "" {
				continue
			}
			if prev, taken := owner[code]; taken {
				return fmt.Errorf("%w: %s[%d]: unique_code %q already used in %s", types.ErrFormat, key, i, code, prev)
			}
			owner[code] = key
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
