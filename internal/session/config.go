package session

import "time"

const (
	ActionUpdated = "updated"
	ActionRenamed = "renamed"
)

// Config tunes the scheduler and the subscriber.
type Config struct {
	// QuietPeriod is how long the editor must be idle before an autosave.
	QuietPeriod time.Duration
	// AutosaveNotify makes timer-triggered writes request notifications.
	// Explicit saves always may.
	AutosaveNotify bool
	// ResubscribeDelay bounds how long a broken subscription waits for a
	// reconnect signal before trying again.
	ResubscribeDelay time.Duration
	// WriteTimeout bounds each Put. Zero means no bound.
	WriteTimeout time.Duration
	// FlushOnClose issues a last background write for unsaved edits when a
	// session closes.
	FlushOnClose bool
}

func DefaultConfig() Config {
	return Config{
		QuietPeriod:      2 * time.Second,
		AutosaveNotify:   true,
		ResubscribeDelay: 2 * time.Second,
		WriteTimeout:     10 * time.Second,
		FlushOnClose:     true,
	}
}
