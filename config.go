package permgate

import (
	"errors"
	"strings"
)

// Config carries all engine tunables. Configure before [Builder.Build]; the
// engine clones the config and never reads the caller's copy afterwards.
type Config struct {
	Store      StoreConfig
	Events     EventsConfig
	Metrics    MetricsConfig
	Resolution ResolutionConfig
}

// StoreConfig configures the default [FileSource] that Build constructs when
// no source is supplied.
type StoreConfig struct {
	// FilePath is the JSON document the source loads on Build and rewrites
	// after every mutation. Empty means in-memory only.
	FilePath string
	// Label is the source's Name(); defaults to "file".
	Label string
}

// EventsConfig controls change notification.
type EventsConfig struct {
	// Enabled gates all event delivery. Subscriptions registered while
	// disabled are retained but never invoked.
	Enabled bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ResolutionConfig controls resolution behavior not expressed per call.
type ResolutionConfig struct {
	// DefaultDecision is the answer when every source is silent and the
	// caller used the two-argument check form.
	DefaultDecision bool
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Label: "file",
		},
		Events: EventsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone point exists so reference
	// fields added later cannot alias caller state.
	return cfg
}

// Validate checks the configuration for contradictions. Build calls this;
// callers constructing configs by hand may call it early for better errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Store.Label) == "" {
		return errors.New("Store.Label must not be blank")
	}
	return nil
}
