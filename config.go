package asyncproc

import (
	"github.com/rs/zerolog"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/asyncproc/metrics"
)

// config holds Processor configuration.
type config struct {
	// Name identifies the processor in logs.
	// Default: "asyncproc"
	Name string

	// StartImmediately starts the worker loop at construction instead of on the first PushTask.
	// Default: false
	StartImmediately bool

	// QueueCapacity sets the base capacity of the task queue and result buffer storage.
	// The storage grows beyond it as needed; it never shrinks below it.
	// Default: 0 (library default)
	QueueCapacity int

	// Snapshotter, when set, is called on every PushTask and its return value
	// is stored in Task.Snapshot. It runs on the caller's goroutine.
	Snapshotter func() any

	// Logger receives lifecycle and failure events.
	// Default: zerolog.Nop()
	Logger zerolog.Logger

	// Metrics provider used to create instruments.
	// Default: metrics.NoopProvider
	Metrics metrics.Provider
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Name:             Namespace,
		StartImmediately: false,
		QueueCapacity:    0,
		Snapshotter:      nil,
		Logger:           zerolog.Nop(),
		Metrics:          metrics.NewNoopProvider(),
	}
}

// validateConfig performs lightweight invariants checks.
func validateConfig(cfg *config) error {
	if cfg.Name == "" {
		return errorc.With(ErrInvalidConfig, errorc.String("", "processor name must not be empty"))
	}
	if cfg.QueueCapacity < 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("", "queue capacity must be >= 0"))
	}
	if cfg.Metrics == nil {
		return errorc.With(ErrInvalidConfig, errorc.String("", "metrics provider must not be nil"))
	}
	return nil
}

// Option configures a Processor. Use New(ctx, step, opts...) to construct a Processor via options.
type Option func(*config) error

// WithName sets the processor name used in log events.
func WithName(name string) Option {
	return func(cfg *config) error {
		if name == "" {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithName requires a non-empty name"))
		}
		cfg.Name = name
		return nil
	}
}

// WithStartImmediately starts the worker loop right away rather than on the first pushed task.
func WithStartImmediately() Option {
	return func(cfg *config) error { cfg.StartImmediately = true; return nil }
}

// WithQueueCapacity sets the base capacity of the task queue and result buffer storage.
func WithQueueCapacity(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithQueueCapacity requires n >= 0"))
		}
		cfg.QueueCapacity = n
		return nil
	}
}

// WithSnapshotter captures fn() into Task.Snapshot on every push.
// Use it to pair each task with the auxiliary state that was current when it was pushed.
func WithSnapshotter(fn func() any) Option {
	return func(cfg *config) error { cfg.Snapshotter = fn; return nil }
}

// WithLogger sets the logger for lifecycle and failure events.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) error { cfg.Logger = l; return nil }
}

// WithMetrics sets the metrics provider. A nil provider is rejected.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.Metrics = p
		return nil
	}
}
