// Package events is a synchronous publish/subscribe bus.
//
// Handlers subscribe to an event name (an open set) and run in registration
// order on the publishing goroutine. Two dispatch modes exist:
//
//   - Validate runs before a mutation. The first handler error stops
//     dispatch and vetoes the operation.
//   - Notify runs after a mutation. Every handler runs; failures are
//     collected and logged but never undo the mutation.
package events

import (
	"time"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Event names published by the catalog.
const (
	ReferenceAdded            = "reference_added"
	ReferenceUpdated          = "reference_updated"
	ReferenceDeleteValidation = "reference_delete_validation"
	ReferenceDeleted          = "reference_deleted"
	RecordAdded               = "record_added"
	LockDateChanged           = "lock_date_changed"
	Log                       = "log"
	LogDebug                  = "LOG_DEBUG"
	LogInfo                   = "LOG_INFO"
	LogError                  = "LOG_ERROR"
)

// Event is one published occurrence.
type Event struct {
	Name    string
	Payload any
}

// ReferencePayload accompanies the reference_* events.
type ReferencePayload struct {
	Kind   types.Kind
	Key    types.CollectionKey
	Entity types.Entity
	Fields []string // applied fields; reference_updated only
}

// RecordPayload accompanies record_added.
type RecordPayload struct {
	Key    types.CollectionKey
	Entity types.Entity
}

// LockDatePayload accompanies lock_date_changed.
type LockDatePayload struct {
	Previous time.Time
	Current  time.Time
}

// LogPayload accompanies log events. The LOG_* events take their level from
// the event name and may carry a bare message string instead.
type LogPayload struct {
	Level   string         `mapstructure:"level"`
	Message string         `mapstructure:"message"`
	Meta    map[string]any `mapstructure:"meta"`
}
