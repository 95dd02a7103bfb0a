// Package metrics defines the instrument surface a Processor records into,
// plus in-memory, no-op and Prometheus-backed providers.
package metrics

import "maps"

// Provider creates named instruments. Asking twice for the same name returns the same instrument.
// Implementations must be safe for concurrent use.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) Counter
	UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter
	Histogram(name string, opts ...InstrumentOption) Histogram
}

// Counter records monotonic counts such as tasks enqueued or failed.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records a level that moves both ways, such as queue depth.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records float64 measurements, such as step durations in seconds.
type Histogram interface {
	Record(v float64)
}

// InstrumentConfig carries optional instrument metadata.
type InstrumentConfig struct {
	Description string
	Unit        string
	// Attributes are static labels of the instrument. Keep cardinality bounded.
	Attributes map[string]string
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets the instrument help text.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets the instrument unit ("1", "seconds").
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}

// WithAttributes merges attrs into the instrument's static labels.
func WithAttributes(attrs map[string]string) InstrumentOption {
	return func(c *InstrumentConfig) {
		if len(attrs) == 0 {
			return
		}
		if c.Attributes == nil {
			c.Attributes = make(map[string]string, len(attrs))
		}
		maps.Copy(c.Attributes, attrs)
	}
}

func applyOptions(opts []InstrumentOption) InstrumentConfig {
	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

var (
	_ Provider = (*BasicProvider)(nil)
	_ Provider = NoopProvider{}
	_ Provider = (*PrometheusProvider)(nil)
)
