// Package query drives a storage-engine query to completion in batches: it
// owns the column buffers, sizes them from a byte budget, grows them when the
// engine cannot deliver a single row, and exposes the unsubmitted, incomplete
// and complete states to the read layer.
package query

import (
	"context"
	"fmt"

	"github.com/hupe1980/gridstream/buffer"
	"github.com/hupe1980/gridstream/engine"
	"github.com/hupe1980/gridstream/filter"
	"github.com/hupe1980/gridstream/resource"
	"github.com/hupe1980/gridstream/schema"
)

// State is the lifecycle position of a ManagedQuery.
type State uint8

const (
	// StateUnsubmitted means no submission has happened yet.
	StateUnsubmitted State = iota
	// StateIncomplete means at least one batch was delivered and more rows
	// remain.
	StateIncomplete
	// StateComplete means all rows were delivered. Terminal.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIncomplete:
		return "incomplete"
	case StateComplete:
		return "complete"
	default:
		return "unsubmitted"
	}
}

const (
	// DefaultInitialByteBudget is the total data-segment budget split across
	// the selected columns on the first submission.
	DefaultInitialByteBudget = 256 << 20
	// DefaultGrowthFactor multiplies a starved buffer's capacity per retry.
	DefaultGrowthFactor = 2.0
	// DefaultMaxByteBudget caps the summed buffer capacity.
	DefaultMaxByteBudget = 4 << 30

	// minColumnBytes keeps the per-column split from degenerating when many
	// columns share a small budget.
	minColumnBytes = 1024
)

// Config tunes buffer sizing for a ManagedQuery. Zero fields take defaults.
type Config struct {
	InitialByteBudget int
	GrowthFactor      float64
	MaxByteBudget     int

	// Controller, when non-nil, accounts all buffer allocations against a
	// shared memory budget.
	Controller *resource.Controller
}

func (c Config) withDefaults() Config {
	if c.InitialByteBudget <= 0 {
		c.InitialByteBudget = DefaultInitialByteBudget
	}
	if c.GrowthFactor <= 1 {
		c.GrowthFactor = DefaultGrowthFactor
	}
	if c.MaxByteBudget <= 0 {
		c.MaxByteBudget = DefaultMaxByteBudget
	}
	return c
}

// ManagedQuery owns one engine query and its column buffers. It is not safe
// for concurrent use; a reader drives it strictly sequentially.
type ManagedQuery struct {
	arr engine.Array
	cfg Config

	columns   []string
	points    map[string][]schema.Value
	ranges    map[string][]schema.Range
	predicate filter.Condition
	order     engine.ResultOrder
	timestamp *engine.TimestampRange

	state  State
	closed bool

	q     engine.Query
	bufs  map[string]*buffer.ColumnBuffer
	cells int
	grows int
}

// New creates a ManagedQuery over an opened array. With no explicit column
// selection, all schema columns are read.
func New(arr engine.Array, cfg Config) *ManagedQuery {
	return &ManagedQuery{
		arr:    arr,
		cfg:    cfg.withDefaults(),
		points: make(map[string][]schema.Value),
		ranges: make(map[string][]schema.Range),
	}
}

// SelectColumns restricts the output to the named columns, in order.
func (m *ManagedQuery) SelectColumns(names ...string) error {
	if err := m.mutable(); err != nil {
		return err
	}
	s := m.arr.Schema()
	for _, name := range names {
		if _, ok := s.Column(name); !ok {
			return &ErrUnknownColumn{Name: name}
		}
	}
	m.columns = append([]string(nil), names...)
	return nil
}

// SetPoints adds point selections on a dimension. Points on the same
// dimension are unioned.
func (m *ManagedQuery) SetPoints(dim string, values ...schema.Value) error {
	if err := m.mutable(); err != nil {
		return err
	}
	col, err := m.dimension(dim)
	if err != nil {
		return err
	}
	for _, v := range values {
		if v.IsNull() || !v.AssignableTo(col.Type) {
			return &ErrTypeMismatch{Dimension: dim, Expected: col.Type, Actual: v.Kind}
		}
	}
	m.points[dim] = append(m.points[dim], values...)
	return nil
}

// SetRanges adds inclusive range selections on a dimension. Ranges on the
// same dimension are unioned.
func (m *ManagedQuery) SetRanges(dim string, ranges ...schema.Range) error {
	if err := m.mutable(); err != nil {
		return err
	}
	col, err := m.dimension(dim)
	if err != nil {
		return err
	}
	for _, r := range ranges {
		for _, v := range []schema.Value{r.Min, r.Max} {
			if v.IsNull() || !v.AssignableTo(col.Type) {
				return &ErrTypeMismatch{Dimension: dim, Expected: col.Type, Actual: v.Kind}
			}
		}
		if schema.Compare(r.Min, r.Max) > 0 {
			return fmt.Errorf("query: inverted range on dimension %q: %s > %s", dim, r.Min.GoString(), r.Max.GoString())
		}
	}
	m.ranges[dim] = append(m.ranges[dim], ranges...)
	return nil
}

// SetPredicate installs a pushdown filter over attribute columns.
func (m *ManagedQuery) SetPredicate(cond filter.Condition) error {
	if err := m.mutable(); err != nil {
		return err
	}
	if err := cond.Validate(m.arr.Schema()); err != nil {
		return &ErrInvalidPredicate{Reason: err.Error(), cause: err}
	}
	m.predicate = cond
	return nil
}

// SetResultOrder sets the requested row ordering.
func (m *ManagedQuery) SetResultOrder(order engine.ResultOrder) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.order = order
	return nil
}

// SetTimestampRange restricts the read to fragments written within the range.
func (m *ManagedQuery) SetTimestampRange(tr engine.TimestampRange) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.timestamp = &tr
	return nil
}

func (m *ManagedQuery) mutable() error {
	if m.closed {
		return ErrQueryClosed
	}
	if m.state != StateUnsubmitted {
		return ErrSelectionFrozen
	}
	return nil
}

func (m *ManagedQuery) dimension(name string) (schema.Column, error) {
	s := m.arr.Schema()
	if !s.HasDimension(name) {
		return schema.Column{}, &ErrUnknownDimension{Name: name}
	}
	col, _ := s.Column(name)
	return col, nil
}

// Columns returns the output column names, defaulting to all schema columns.
func (m *ManagedQuery) Columns() []string {
	if len(m.columns) > 0 {
		return m.columns
	}
	return m.arr.Schema().ColumnNames()
}

// State returns the query's lifecycle state.
func (m *ManagedQuery) State() State { return m.state }

// IsComplete reports whether all rows have been delivered. Idempotent.
func (m *ManagedQuery) IsComplete() bool { return m.state == StateComplete }

// Submit runs the first submission: it freezes the request, allocates the
// column buffers from the initial byte budget and fills the first batch.
func (m *ManagedQuery) Submit(ctx context.Context) error {
	if m.closed {
		return ErrQueryClosed
	}
	if m.state == StateComplete {
		return ErrQueryAlreadyComplete
	}
	if m.state == StateIncomplete {
		return m.Resume(ctx)
	}

	req := &engine.Request{
		Columns:   m.Columns(),
		Points:    m.points,
		Ranges:    m.ranges,
		Predicate: m.predicate,
		Order:     m.order,
		Timestamp: m.timestamp,
	}
	q, err := m.arr.NewQuery(req)
	if err != nil {
		return err
	}
	m.q = q

	if err := m.allocate(req.Columns); err != nil {
		m.q.Close()
		m.q = nil
		return err
	}

	m.state = StateIncomplete
	return m.fill(ctx)
}

// Resume fills the next batch. Only valid while the query is incomplete.
func (m *ManagedQuery) Resume(ctx context.Context) error {
	if m.closed {
		return ErrQueryClosed
	}
	switch m.state {
	case StateUnsubmitted:
		return ErrQueryNotSubmitted
	case StateComplete:
		return ErrQueryAlreadyComplete
	}
	return m.fill(ctx)
}

func (m *ManagedQuery) allocate(columns []string) error {
	perColumn := m.cfg.InitialByteBudget / len(columns)
	if perColumn < minColumnBytes {
		perColumn = minColumnBytes
	}

	s := m.arr.Schema()
	m.bufs = make(map[string]*buffer.ColumnBuffer, len(columns))
	for _, name := range columns {
		col, _ := s.Column(name)
		b := buffer.New(col, m.cfg.Controller)
		if err := b.Allocate(perColumn); err != nil {
			m.releaseBuffers()
			return err
		}
		m.bufs[name] = b
	}
	return nil
}

// fill submits until the engine delivers rows or finishes, growing starved
// buffers between zero-row attempts. Every batch surfaced to the caller has
// at least one row unless the query is complete.
func (m *ManagedQuery) fill(ctx context.Context) error {
	for {
		res, err := m.q.Submit(ctx, m.bufs)
		if err != nil {
			return err
		}

		m.cells = 0
		for _, n := range res.Cells {
			m.cells = n
			break
		}

		if res.Status == engine.StatusComplete {
			m.state = StateComplete
			return nil
		}
		if m.cells > 0 {
			return nil
		}

		if err := m.grow(res.Starved); err != nil {
			return err
		}
	}
}

// grow expands the named buffers by the configured factor, all buffers when
// the engine did not single any out.
func (m *ManagedQuery) grow(starved []string) error {
	if len(starved) == 0 {
		starved = m.Columns()
	}

	total := 0
	for _, b := range m.bufs {
		total += b.CapacityBytes()
	}
	for _, name := range starved {
		grown := int(float64(m.bufs[name].CapacityBytes()) * m.cfg.GrowthFactor)
		total += grown - m.bufs[name].CapacityBytes()
	}
	if total > m.cfg.MaxByteBudget {
		return fmt.Errorf("%w: growing %d column(s) needs %d bytes, budget is %d",
			ErrRowTooLarge, len(starved), total, m.cfg.MaxByteBudget)
	}

	for _, name := range starved {
		if err := m.bufs[name].Grow(m.cfg.GrowthFactor); err != nil {
			return err
		}
	}
	m.grows++
	return nil
}

// Grows returns how many grow-and-retry rounds have run so far.
func (m *ManagedQuery) Grows() int { return m.grows }

// Results returns the buffers holding the current batch and its row count.
// The buffers are owned by the query and are overwritten by the next
// submission.
func (m *ManagedQuery) Results() (map[string]*buffer.ColumnBuffer, int) {
	return m.bufs, m.cells
}

// Close releases the buffers and the engine query. Safe in any state and
// idempotent.
func (m *ManagedQuery) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.releaseBuffers()
	if m.q != nil {
		return m.q.Close()
	}
	return nil
}

func (m *ManagedQuery) releaseBuffers() {
	for _, b := range m.bufs {
		b.Release()
	}
	m.bufs = nil
}
