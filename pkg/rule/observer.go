package rule

import "github.com/rs/zerolog"

// Event is an informational record of a rule decision
type Event struct {
	Rule       string
	ResourceID string
	CleanupTag string
	TagValue   string
	Authorized bool
	Message    string
}

// Observer receives decision events from a rule
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

// Observe calls f(e)
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// LogObserver writes decision events to a zerolog logger at info level
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates an observer backed by the given logger
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Observe logs the event
func (o *LogObserver) Observe(e Event) {
	o.logger.Info().
		Str("rule", e.Rule).
		Str("resource_id", e.ResourceID).
		Str("cleanup_tag", e.CleanupTag).
		Str("tag_value", e.TagValue).
		Bool("cleanup_authorized", e.Authorized).
		Msg(e.Message)
}
