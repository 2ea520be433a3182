package gridstream

import (
	"github.com/hupe1980/gridstream/engine"
	"github.com/hupe1980/gridstream/filter"
	"github.com/hupe1980/gridstream/query"
	"github.com/hupe1980/gridstream/resource"
	"github.com/hupe1980/gridstream/schema"
)

type options struct {
	engine            engine.Engine
	columns           []string
	points            map[string][]schema.Value
	ranges            map[string][]schema.Range
	predicate         filter.Condition
	order             engine.ResultOrder
	timestamp         *engine.TimestampRange
	initialByteBudget int
	growthFactor      float64
	maxByteBudget     int
	controller        *resource.Controller
	logger            *Logger
	metrics           MetricsCollector
}

func defaultOptions() options {
	return options{
		engine:  engine.NewEngine(),
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
}

// Option configures a Reader at Open time. The configuration is frozen once
// the reader is created; there is no way to change the selection afterwards.
type Option func(*options)

// WithEngine sets the storage engine used to resolve the URI. Defaults to
// engine.NewEngine(), which serves mem://, file:// and s3:// URIs.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithColumns restricts the output to the named columns, in batch order.
// Without it, all schema columns are read.
func WithColumns(names ...string) Option {
	return func(o *options) {
		o.columns = append([]string(nil), names...)
	}
}

// WithPoints adds point selections on a dimension. Points on the same
// dimension are unioned; selections across dimensions are intersected.
func WithPoints(dim string, values ...schema.Value) Option {
	return func(o *options) {
		if o.points == nil {
			o.points = make(map[string][]schema.Value)
		}
		o.points[dim] = append(o.points[dim], values...)
	}
}

// WithRanges adds inclusive range selections on a dimension.
func WithRanges(dim string, ranges ...schema.Range) Option {
	return func(o *options) {
		if o.ranges == nil {
			o.ranges = make(map[string][]schema.Range)
		}
		o.ranges[dim] = append(o.ranges[dim], ranges...)
	}
}

// WithPredicate installs a pushdown filter over attribute columns.
func WithPredicate(cond filter.Condition) Option {
	return func(o *options) {
		o.predicate = cond
	}
}

// WithResultOrder sets the requested row ordering. Defaults to unordered.
func WithResultOrder(order engine.ResultOrder) Option {
	return func(o *options) {
		o.order = order
	}
}

// WithTimestampRange restricts the read to fragments written within
// [start, end]. Open fails with ErrInvalidTimestampRange when start > end.
func WithTimestampRange(start, end uint64) Option {
	return func(o *options) {
		o.timestamp = &engine.TimestampRange{Start: start, End: end}
	}
}

// WithInitialByteBudget sets the total buffer budget split across the
// selected columns on the first submission. Defaults to 256 MiB.
func WithInitialByteBudget(n int) Option {
	return func(o *options) {
		o.initialByteBudget = n
	}
}

// WithGrowthFactor sets the multiplier applied to starved buffers between
// zero-row submissions. Defaults to 2.
func WithGrowthFactor(f float64) Option {
	return func(o *options) {
		o.growthFactor = f
	}
}

// WithMaxByteBudget caps the summed buffer capacity; a row that does not fit
// within the cap fails the read with ErrRowTooLarge. Defaults to 4 GiB.
func WithMaxByteBudget(n int) Option {
	return func(o *options) {
		o.maxByteBudget = n
	}
}

// WithResourceController accounts buffer allocations against a shared memory
// budget and throttles snapshot IO.
func WithResourceController(ctrl *resource.Controller) Option {
	return func(o *options) {
		o.controller = ctrl
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring reads.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

func (o options) queryConfig() query.Config {
	return query.Config{
		InitialByteBudget: o.initialByteBudget,
		GrowthFactor:      o.growthFactor,
		MaxByteBudget:     o.maxByteBudget,
		Controller:        o.controller,
	}
}
