package metrics

// NoopProvider discards every measurement. It is the Processor default.
type NoopProvider struct{}

// NewNoopProvider returns a NoopProvider.
func NewNoopProvider() NoopProvider { return NoopProvider{} }

func (NoopProvider) Counter(string, ...InstrumentOption) Counter { return noop{} }

func (NoopProvider) UpDownCounter(string, ...InstrumentOption) UpDownCounter { return noop{} }

func (NoopProvider) Histogram(string, ...InstrumentOption) Histogram { return noop{} }

// noop satisfies every instrument interface.
type noop struct{}

func (noop) Add(int64) {}
func (noop) Record(float64) {}
