package events

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/pkg/types"
)

func recorder(calls *[]string, name string, err error) Handler {
	return func(Event) error {
		*calls = append(*calls, name)
		return err
	}
}

func TestNotifyRunsInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var calls []string
	bus.Subscribe(ReferenceAdded, "a", recorder(&calls, "a", nil))
	bus.Subscribe(ReferenceAdded, "b", recorder(&calls, "b", nil))
	bus.Subscribe(ReferenceDeleted, "other", recorder(&calls, "other", nil))
	bus.Subscribe(ReferenceAdded, "c", recorder(&calls, "c", nil))

	failures := bus.Notify(Event{Name: ReferenceAdded})
	assert.Empty(t, failures)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, []string{"a", "b", "c"}, bus.Handlers(ReferenceAdded))
}

func TestNotifyUnknownEvent(t *testing.T) {
	assert.Empty(t, NewBus().Notify(Event{Name: "nobody_listens"}))
	assert.NoError(t, NewBus().Validate(Event{Name: "nobody_listens"}))
}

func TestNotifyCollectsFailuresAndContinues(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var hooked []HandlerFailure
	bus := NewBus(WithLogger(logger), WithFailureHook(func(f HandlerFailure) { hooked = append(hooked, f) }))

	boom := errors.New("boom")
	var calls []string
	bus.Subscribe(ReferenceUpdated, "first", recorder(&calls, "first", boom))
	bus.Subscribe(ReferenceUpdated, "panics", func(Event) error { panic("kaput") })
	bus.Subscribe(ReferenceUpdated, "last", recorder(&calls, "last", nil))

	failures := bus.Notify(Event{Name: ReferenceUpdated})
	require.Len(t, failures, 2)
	assert.Equal(t, "first", failures[0].Handler)
	assert.ErrorIs(t, failures[0].Err, boom)
	assert.Equal(t, "panics", failures[1].Handler)
	assert.Contains(t, failures[1].Err.Error(), "kaput")
	assert.Equal(t, []string{"first", "last"}, calls)

	assert.Equal(t, failures, hooked)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "panics", hook.LastEntry().Data["handler"])
}

func TestValidateVetoStopsDispatch(t *testing.T) {
	bus := NewBus()
	refused := errors.New("still in use by the kitchen")
	var calls []string
	bus.Subscribe(ReferenceDeleteValidation, "ok", recorder(&calls, "ok", nil))
	bus.Subscribe(ReferenceDeleteValidation, "guard", recorder(&calls, "guard", refused))
	bus.Subscribe(ReferenceDeleteValidation, "never", recorder(&calls, "never", nil))

	err := bus.Validate(Event{Name: ReferenceDeleteValidation})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrVetoed)
	assert.ErrorIs(t, err, refused)

	var veto *VetoError
	require.ErrorAs(t, err, &veto)
	assert.Equal(t, "guard", veto.Handler)
	assert.Equal(t, ReferenceDeleteValidation, veto.Event)
	assert.Equal(t, []string{"ok", "guard"}, calls)
}

func TestValidatePanicVetoes(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(ReferenceDeleteValidation, "panics", func(Event) error { panic("no") })
	assert.ErrorIs(t, bus.Validate(Event{Name: ReferenceDeleteValidation}), types.ErrVetoed)
}

func TestHandlerReceivesPayload(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(LockDateChanged, "capture", func(e Event) error {
		got = e
		return nil
	})
	evt := Event{Name: LockDateChanged, Payload: LockDatePayload{}}
	bus.Notify(evt)
	assert.Equal(t, evt, got)
}
