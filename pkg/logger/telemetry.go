package logger

import "log/slog"

// Telemetry is a fire-and-forget analytics sink that writes events to a
// structured logger. It never reports failures to the caller.
type Telemetry struct {
	log *slog.Logger
}

func NewTelemetry(log *slog.Logger) *Telemetry {
	if log == nil {
		log = Discard()
	}
	return &Telemetry{log: log.With("channel", "telemetry")}
}

func (t *Telemetry) Track(event string, attrs ...any) {
	if t == nil {
		return
	}
	t.log.Info(event, attrs...)
}
