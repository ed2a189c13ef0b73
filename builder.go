package permgate

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/permgate/permgate/internal/events"
	internalmetrics "github.com/permgate/permgate/internal/metrics"
)

// Builder assembles an [Engine]. Configure with the With* chain, then call
// [Builder.Build] exactly once. Construction is allocation-only except for
// the default FileSource load when Store.FilePath is set.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sources       []Source
	eventSinks    []EventSink
	virtualGroups map[string][]string

	built bool
}

// New creates a Builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSource appends a source. The first appended source is primary; when no
// source is supplied at all, Build constructs a [FileSource] from
// Config.Store as primary.
func (b *Builder) WithSource(source Source) *Builder {
	if source != nil {
		b.sources = append(b.sources, source)
	}
	return b
}

// WithRedis appends a [RedisSource] over the given client, keyed with the
// default prefix. Equivalent to WithSource(NewRedisSource(client, "", "")).
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithEventSink attaches a sink that observes every mutation kind. May be
// called multiple times.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	if sink != nil {
		b.eventSinks = append(b.eventSinks, sink)
	}
	return b
}

// WithVirtualGroups sets the initial virtual group table.
func (b *Builder) WithVirtualGroups(groups map[string][]string) *Builder {
	b.virtualGroups = groups
	return b
}

// WithMetricsEnabled toggles the in-process metrics system.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the resolution-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, assembles the registry, and returns a
// ready Engine. A Builder builds once; later calls return ErrBuilderUsed.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sources := b.sources
	if len(sources) == 0 {
		fs, err := NewFileSource(cfg.Store.Label, cfg.Store.FilePath)
		if err != nil {
			return nil, err
		}
		sources = []Source{fs}
	}
	if b.redis != nil {
		sources = append(sources, NewRedisSource(b.redis, "", ""))
	}

	registry, err := NewSourceRegistry(sources...)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		registry: registry,
		notifier: events.NewNotifier(),
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:       cfg.Metrics.Enabled,
			EnableLatency: cfg.Metrics.EnableLatencyHistograms,
		}),
	}

	engine.SetVirtualGroups(b.virtualGroups)

	for _, sink := range b.eventSinks {
		engine.notifier.AttachSink(context.Background(), sink)
	}

	b.built = true

	return engine, nil
}
