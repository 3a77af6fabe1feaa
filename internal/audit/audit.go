// Package audit keeps a JSONL journal of catalog changes.
//
// The journal subscribes to the post-commit reference and record events and
// appends one line per change. Lines are fsynced as they are written so a
// crash loses at most the change in flight.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/internal/events"
)

// HandlerName identifies the journal on the bus.
const HandlerName = "audit"

// Actions recorded in the journal.
const (
	ActionAdded    = "added"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionRecorded = "recorded"
)

// Entry is one journal line.
type Entry struct {
	Kind      string          `json:"kind"`
	Action    string          `json:"action"`
	ID        string          `json:"id"`
	Fields    []string        `json:"fields,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Journal appends entries to a JSONL file.
type Journal struct {
	mu   sync.Mutex
	path string
	log  logrus.FieldLogger
	now  func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(j *Journal) { j.log = l }
}

// WithNow sets the clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// New returns a journal writing to path.
func New(path string, opts ...Option) *Journal {
	j := &Journal{path: path, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	if j.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		j.log = l
	}
	return j
}

// Path returns the journal file.
func (j *Journal) Path() string { return j.path }

// Subscribe registers the journal for the post-commit catalog events.
func (j *Journal) Subscribe(bus *events.Bus) {
	for _, name := range []string{events.ReferenceAdded, events.ReferenceUpdated, events.ReferenceDeleted, events.RecordAdded} {
		bus.Subscribe(name, HandlerName, j.handle)
	}
}

func (j *Journal) handle(evt events.Event) error {
	entry, err := j.entryOf(evt)
	if err != nil {
		return err
	}
	return j.Append(entry)
}

func (j *Journal) entryOf(evt events.Event) (Entry, error) {
	var entry Entry
	var subject any
	switch p := evt.Payload.(type) {
	case events.ReferencePayload:
		entry.Kind = p.Kind.String()
		entry.Action = referenceAction(evt.Name)
		entry.Fields = p.Fields
		subject = p.Entity
		if p.Entity != nil {
			entry.ID = p.Entity.Code()
		}
	case events.RecordPayload:
		entry.Kind = string(p.Key)
		entry.Action = ActionRecorded
		subject = p.Entity
		if p.Entity != nil {
			entry.ID = p.Entity.Code()
		}
	default:
		return Entry{}, fmt.Errorf("audit: unexpected payload %T for %s", evt.Payload, evt.Name)
	}
	body, err := json.Marshal(subject)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: encode %s %q: %w", entry.Kind, entry.ID, err)
	}
	entry.Payload = body
	entry.Timestamp = j.now().UTC()
	return entry, nil
}

func referenceAction(event string) string {
	switch event {
	case events.ReferenceUpdated:
		return ActionUpdated
	case events.ReferenceDeleted:
		return ActionDeleted
	default:
		return ActionAdded
	}
}

// Append writes entry as one line and syncs the file.
func (j *Journal) Append(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("audit: create directory: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", j.path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("audit: write %s: %w", j.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("audit: sync %s: %w", j.path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	j.log.WithFields(logrus.Fields{"kind": entry.Kind, "action": entry.Action, "id": entry.ID}).Debug("audit entry written")
	return nil
}

// Read returns the entries in the journal at path, oldest first. Malformed
// lines are skipped. A missing journal has no entries.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return entries, nil
}
