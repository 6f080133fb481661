package sim

import (
	"reflect"

	log "github.com/sirupsen/logrus"
)

// EventLogger is an hook that prints the event information
type EventLogger struct {
	logger log.FieldLogger
}

// NewEventLogger returns a new EventLogger which writes to the logger at the
// debug level.
func NewEventLogger(logger log.FieldLogger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	fields := log.Fields{
		"time":     float64(evt.Time()),
		"event":    reflect.TypeOf(evt).String(),
		"priority": evt.Priority().String(),
	}

	if comp, ok := evt.Handler().(Named); ok {
		fields["handler"] = comp.Name()
	}

	h.logger.WithFields(fields).Debug("event")
}
