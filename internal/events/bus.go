package events

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Handler reacts to an event. A non-nil error vetoes a validation event and
// is recorded as a failure for a notification.
type Handler func(Event) error

// HandlerFailure records a post-commit handler that failed.
type HandlerFailure struct {
	Event   string
	Handler string
	Err     error
}

// VetoError is returned by Validate when a handler rejects the event.
// It matches types.ErrVetoed and unwraps to the handler's error.
type VetoError struct {
	Event   string
	Handler string
	Err     error
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("%s: %s by %s: %v", types.ErrVetoed, e.Event, e.Handler, e.Err)
}

func (e *VetoError) Unwrap() error { return e.Err }

func (e *VetoError) Is(target error) bool { return target == types.ErrVetoed }

type subscription struct {
	name string
	fn   Handler
}

// Bus maps event names to ordered handler lists.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[string][]subscription
	log       logrus.FieldLogger
	onFailure func(HandlerFailure)
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bus) { b.log = l }
}

// WithFailureHook registers a callback run for every post-commit failure.
func WithFailureHook(fn func(HandlerFailure)) Option {
	return func(b *Bus) { b.onFailure = fn }
}

// NewBus returns an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{handlers: make(map[string][]subscription)}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.log = l
	}
	return b
}

// Subscribe registers fn for event under handler, a name used in logs,
// veto errors and failure reports.
func (b *Bus) Subscribe(event, handler string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], subscription{name: handler, fn: fn})
}

// Handlers returns the handler names subscribed to event, in order.
func (b *Bus) Handlers(event string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.handlers[event]))
	for _, s := range b.handlers[event] {
		names = append(names, s.name)
	}
	return names
}

func (b *Bus) snapshot(event string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]subscription, len(b.handlers[event]))
	copy(subs, b.handlers[event])
	return subs
}

// Validate dispatches a pre-commit event. The first handler to fail stops
// dispatch; its error is returned as a *VetoError.
func (b *Bus) Validate(evt Event) error {
	for _, s := range b.snapshot(evt.Name) {
		if err := invoke(s.fn, evt); err != nil {
			b.log.WithFields(logrus.Fields{
				"event":   evt.Name,
				"handler": s.name,
			}).WithError(err).Info("operation vetoed")
			return &VetoError{Event: evt.Name, Handler: s.name, Err: err}
		}
	}
	return nil
}

// Notify dispatches a post-commit event to every handler and returns the
// failures, if any.
func (b *Bus) Notify(evt Event) []HandlerFailure {
	var failures []HandlerFailure
	for _, s := range b.snapshot(evt.Name) {
		err := invoke(s.fn, evt)
		if err == nil {
			continue
		}
		f := HandlerFailure{Event: evt.Name, Handler: s.name, Err: err}
		failures = append(failures, f)
		b.log.WithFields(logrus.Fields{
			"event":   evt.Name,
			"handler": s.name,
		}).WithError(err).Error("event handler failed")
		if b.onFailure != nil {
			b.onFailure(f)
		}
	}
	return failures
}

// invoke runs fn, turning a panic into an error.
func invoke(fn Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(evt)
}
