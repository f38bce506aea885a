package sim

import "log"

// EventLogger is a hook that prints every delivery through a standard
// logger. Logging is a side channel: it observes the run and never affects
// scheduling.
type EventLogger struct {
	*log.Logger
}

// NewEventLogger returns a hook that writes deliveries into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{Logger: logger}
}

// Func writes the delivery information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosNetDeliver {
		return
	}

	d, ok := ctx.Item.(Delivery)
	if !ok {
		return
	}

	h.Printf("%s", d)
}
