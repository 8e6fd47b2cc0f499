package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

type state int

const (
	stateNew state = iota
	stateOpen
	stateExhausted
	stateFailed
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "unopened"
	case stateOpen:
		return "open"
	case stateExhausted:
		return "exhausted"
	case stateFailed:
		return "failed"
	default:
		return "closed"
	}
}

// block accumulates one record between section boundaries.
type block struct {
	index     Index
	values    map[string]float64
	units     map[string]string
	rows      int64
	converged bool
	doomed    bool // ordering fault under the skip policy; rows are counted, nothing is emitted
	start     Cursor
}

func newBlock(idx Index, at Cursor) *block {
	return &block{
		index:  idx,
		values: make(map[string]float64),
		units:  make(map[string]string),
		start:  at,
	}
}

// Reader is the base extraction engine: it owns one source stream for its
// lifetime and turns it into a lazy, ordered sequence of Points. A Reader is
// single-pass and forward-only; once exhausted or closed, a fresh instance is
// required to re-read. Not safe for concurrent use: open independent readers
// against independent streams instead.
type Reader struct {
	schema Schema
	cfg    Config

	src  io.ReadCloser
	name string
	sc   *bufio.Scanner

	state  state
	cursor Cursor
	diag   Diagnostics

	cur     *block            // block under construction
	pending *block            // completed block held for duplicate lookahead
	seen    map[string]bool   // emitted index keys, unordered axes only
	units   map[string]string // first effective unit per quantity this run
	last    Index             // most recently accepted block index
	hasLast bool

	queue []Point
	out   Point
	err   error
}

// New builds an engine around a mode schema. The zero Config selects skip
// recovery, last-wins duplicates, and the schema's declared default units.
func New(schema Schema, cfg Config) (*Reader, error) {
	if schema == nil {
		return nil, fmt.Errorf("reader: schema is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reader{
		schema: schema,
		cfg:    cfg.withDefaults(),
		seen:   make(map[string]bool),
		units:  make(map[string]string),
	}, nil
}

// Open establishes the source stream. "-" reads stdin; gzip input is handled
// transparently. Reopening an already-open (or closed) reader fails with
// ErrInvalidState; an unopenable source fails with *SourceError.
func (r *Reader) Open(path string) error {
	if r.state != stateNew {
		return fmt.Errorf("%w: open on %s reader", ErrInvalidState, r.state)
	}
	rc, err := openSource(path)
	if err != nil {
		return &SourceError{Source: path, Err: err}
	}
	r.attach(rc, path)
	return nil
}

// OpenStream adopts an already-open stream. The reader owns rc from here on
// and releases it on exhaustion, failure, or Close. name is used in logs and
// errors only.
func (r *Reader) OpenStream(rc io.ReadCloser, name string) error {
	if r.state != stateNew {
		return fmt.Errorf("%w: open on %s reader", ErrInvalidState, r.state)
	}
	if rc == nil {
		return &SourceError{Source: name, Err: fmt.Errorf("nil stream")}
	}
	r.attach(rc, name)
	return nil
}

func (r *Reader) attach(rc io.ReadCloser, name string) {
	r.src = rc
	r.name = name
	r.sc = bufio.NewScanner(rc)
	r.sc.Buffer(make([]byte, 64*1024), r.cfg.MaxLineBytes)
	r.state = stateOpen
}

// Next advances to the next Point, returning false at end of stream or on a
// fatal error; Err distinguishes the two. Points arrive strictly in source
// order and the cursor never rewinds.
func (r *Reader) Next() bool {
	if r.popPoint() {
		return true
	}
	switch r.state {
	case stateOpen:
	case stateExhausted, stateFailed:
		return false
	default:
		r.err = fmt.Errorf("%w: next on %s reader", ErrInvalidState, r.state)
		return false
	}
	for r.sc.Scan() {
		at := Cursor{Line: r.cursor.Line + 1, Offset: r.cursor.Offset}
		r.cursor = Cursor{Line: at.Line, Offset: at.Offset + int64(len(r.sc.Bytes())) + 1}
		r.diag.LinesRead++
		if err := r.process(r.sc.Text(), at); err != nil {
			r.fail(err)
			return false
		}
		if r.popPoint() {
			return true
		}
	}
	if err := r.sc.Err(); err != nil {
		r.fail(fmt.Errorf("reader %s: scan: %w", r.name, err))
		return false
	}
	if err := r.finish(); err != nil {
		r.fail(err)
		return false
	}
	r.state = stateExhausted
	r.diag.Cursor = r.cursor
	r.release()
	return r.popPoint()
}

// Point returns the Point produced by the last successful Next.
func (r *Reader) Point() Point { return r.out }

// Err returns the fatal error that terminated iteration, if any. A nil result
// after Next returns false means clean exhaustion.
func (r *Reader) Err() error { return r.err }

// Diagnostics returns the run summary. Counters are live during iteration and
// final after exhaustion, failure, or Close.
func (r *Reader) Diagnostics() Diagnostics {
	d := r.diag
	d.UnitChanges = append([]UnitChange(nil), r.diag.UnitChanges...)
	return d
}

// Close releases the underlying stream. Safe in any state and idempotent;
// abandoning iteration partway through and calling Close is always valid.
func (r *Reader) Close() error {
	var err error
	if r.src != nil {
		err = r.src.Close()
		r.src = nil
		r.sc = nil
	}
	if r.state == stateNew || r.state == stateOpen {
		r.state = stateClosed
		r.diag.Cursor = r.cursor
	}
	return err
}

// Each drives the reader to exhaustion, invoking fn for every Point. The
// context is checked between points, and the stream is released on every
// return path. Grounded in the callback form used for other streaming record
// sources in this codebase's lineage.
func (r *Reader) Each(ctx context.Context, fn func(Point) error) error {
	defer r.Close()
	for r.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(r.Point()); err != nil {
			return err
		}
	}
	return r.Err()
}

func (r *Reader) popPoint() bool {
	if len(r.queue) == 0 {
		return false
	}
	r.out = r.queue[0]
	r.queue = r.queue[1:]
	r.diag.PointsEmitted++
	return true
}

// process classifies one line and feeds it to the block assembly.
func (r *Reader) process(line string, at Cursor) error {
	switch r.schema.Classify(line) {
	case LineBlank:
		r.diag.BlankLines++
	case LineHeader:
		r.diag.HeaderLines++
	case LineConverged:
		r.diag.BoundaryLines++
		if r.cur != nil {
			r.cur.converged = true
		} else if r.pending != nil {
			r.pending.converged = true
		}
	case LineBoundary:
		return r.boundary(line, at)
	case LineData:
		return r.dataRow(line, at)
	}
	return nil
}

// boundary closes the current block and opens the next index context.
func (r *Reader) boundary(line string, at Cursor) error {
	idx, err := r.schema.Boundary(line)
	if err != nil {
		// Unparseable marker: counted like a malformed data row, and the
		// current context stays open.
		r.diag.DataRows++
		return r.malformedRow(at, line, err)
	}
	r.diag.BoundaryLines++
	if err := r.closeCurrent(false); err != nil {
		return err
	}
	if r.hasLast && !idx.Equal(r.last) {
		if err := r.schema.CheckOrder(r.last, idx); err != nil {
			if r.cfg.Recovery == RecoveryFailFast {
				return &MalformedRecordError{Cursor: at, Line: line, Reason: err.Error()}
			}
			logrus.Warnf("reader %s: skipping out-of-order block at %s: %v", r.name, at, err)
			r.diag.SkippedBlocks++
			r.cur = newBlock(idx, at)
			r.cur.doomed = true
			return nil
		}
	}
	r.cur = newBlock(idx, at)
	logrus.Debugf("reader %s: %s block at %s", r.name, idx, at)
	return nil
}

// dataRow tokenizes one row and accumulates it into the current block.
func (r *Reader) dataRow(line string, at Cursor) error {
	if r.cur == nil {
		idx, ok := r.schema.ImplicitIndex()
		if !ok {
			// Preamble outside any section: header noise, not data.
			r.diag.HeaderLines++
			return nil
		}
		if _, err := r.schema.Row(line); err != nil {
			r.diag.HeaderLines++
			return nil
		}
		r.cur = newBlock(idx, at)
	}
	r.diag.DataRows++
	if r.cur.doomed {
		r.cur.rows++
		return nil
	}
	f, err := r.schema.Row(line)
	if err != nil {
		return r.malformedRow(at, line, err)
	}
	r.cur.rows++
	r.applyField(r.cur, f, at)
	return nil
}

// applyField resolves the effective unit and stores the quantity.
func (r *Reader) applyField(b *block, f Field, at Cursor) {
	unit := f.Unit
	if unit == "" {
		if u, ok := lookupUnit(r.cfg.DefaultUnits, f.Name); ok {
			unit = u
		} else if u, ok := lookupUnit(r.schema.DefaultUnits(), f.Name); ok {
			unit = u
		}
	}
	if first, ok := r.units[f.Name]; !ok {
		r.units[f.Name] = unit
	} else if first != unit {
		r.diag.UnitChanges = append(r.diag.UnitChanges, UnitChange{
			Quantity: f.Name, From: first, To: unit, Cursor: at,
		})
		logrus.Warnf("reader %s: unit of %q changed from %q to %q at %s", r.name, f.Name, first, unit, at)
		r.units[f.Name] = unit
	}
	b.values[f.Name] = f.Value
	b.units[f.Name] = unit
}

func (r *Reader) malformedRow(at Cursor, line string, cause error) error {
	if r.cfg.Recovery == RecoveryFailFast {
		return &MalformedRecordError{Cursor: at, Line: line, Reason: cause.Error()}
	}
	r.diag.SkippedRows++
	logrus.Warnf("reader %s: skipping malformed row at %s: %v", r.name, at, cause)
	return nil
}

// closeCurrent finishes the block under construction. At end of stream an
// incomplete block is the truncated tail and is dropped under either recovery
// policy; mid-stream it is a malformed record.
func (r *Reader) closeCurrent(eof bool) error {
	b := r.cur
	r.cur = nil
	if b == nil {
		return nil
	}
	if b.doomed {
		r.diag.DiscardedRows += b.rows
		return nil
	}
	if !r.schema.Complete(b.values) {
		if eof {
			r.diag.TruncatedTail = true
			r.diag.DiscardedRows += b.rows
			logrus.Warnf("reader %s: discarding truncated final block at %s", r.name, b.start)
			return nil
		}
		if r.cfg.Recovery == RecoveryFailFast {
			return &MalformedRecordError{Cursor: b.start, Reason: "incomplete record: required quantities missing"}
		}
		logrus.Warnf("reader %s: skipping incomplete %s block at %s", r.name, r.schema.Mode(), b.start)
		r.diag.SkippedBlocks++
		r.diag.DiscardedRows += b.rows
		return nil
	}
	return r.accept(b)
}

// accept resolves duplicates against the held block, then promotes b to
// pending, emitting its predecessor.
func (r *Reader) accept(b *block) error {
	if r.pending != nil && r.pending.index.Equal(b.index) {
		r.diag.DuplicatesResolved++
		switch r.cfg.Duplicates {
		case DuplicateError:
			return &DuplicateIndexError{Cursor: b.start, Index: b.index}
		case DuplicateFirstWins:
			logrus.Warnf("reader %s: duplicate %s, keeping first occurrence", r.name, b.index)
			r.diag.DiscardedRows += b.rows
			return nil
		default:
			logrus.Warnf("reader %s: duplicate %s, keeping last occurrence", r.name, b.index)
			r.diag.DiscardedRows += r.pending.rows
			r.pending.index = b.index
			r.pending.values = b.values
			r.pending.units = b.units
			r.pending.rows = b.rows
			r.pending.converged = r.pending.converged || b.converged
			return nil
		}
	}
	if !r.schema.Ordered() && r.seen[b.index.key()] {
		// A repeat of an index whose Point may already be emitted. Last-wins
		// cannot retract a yielded Point, so it degrades to first-wins here.
		r.diag.DuplicatesResolved++
		if r.cfg.Duplicates == DuplicateError {
			return &DuplicateIndexError{Cursor: b.start, Index: b.index}
		}
		logrus.Warnf("reader %s: duplicate %s after an intervening block, keeping first occurrence", r.name, b.index)
		r.diag.DiscardedRows += b.rows
		return nil
	}
	if r.pending != nil {
		if err := r.emit(r.pending); err != nil {
			return err
		}
	}
	r.pending = b
	if !r.schema.Ordered() {
		r.seen[b.index.key()] = true
	}
	r.last = b.index
	r.hasLast = true
	return nil
}

func (r *Reader) emit(b *block) error {
	pt, err := NewPoint(b.index, b.values, b.units)
	if err != nil {
		return fmt.Errorf("reader %s: %w", r.name, err)
	}
	pt.converged = b.converged
	r.queue = append(r.queue, pt)
	r.diag.AcceptedRows += b.rows
	return nil
}

// finish runs end-of-stream handling: the truncated-tail rule for the block
// under construction, then the flush of the held block.
func (r *Reader) finish() error {
	if err := r.closeCurrent(true); err != nil {
		return err
	}
	if r.pending != nil {
		b := r.pending
		r.pending = nil
		if err := r.emit(b); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) fail(err error) {
	r.err = err
	r.state = stateFailed
	r.diag.Cursor = r.cursor
	r.release()
}

func (r *Reader) release() {
	if r.src == nil {
		return
	}
	if cerr := r.src.Close(); cerr != nil {
		logrus.Warnf("reader %s: close: %v", r.name, cerr)
	}
	r.src = nil
	r.sc = nil
}
