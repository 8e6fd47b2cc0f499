package reader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neutronics-io/neutronics-io/reader/internal/testutil"
)

// kvSchema is a minimal schema for engine tests, independent of the
// neutronics grammars: "== <n>" opens a block indexed n, data rows are
// "name value [unit]".
type kvSchema struct {
	implicit  bool // markerless input forms one aggregate block
	unordered bool
}

func (s kvSchema) Mode() Mode { return "test" }

func (s kvSchema) Classify(line string) LineClass {
	t := strings.TrimSpace(line)
	switch {
	case t == "":
		return LineBlank
	case strings.HasPrefix(t, "#"):
		return LineHeader
	case t == "!converged":
		return LineConverged
	case strings.HasPrefix(t, "== "):
		return LineBoundary
	default:
		return LineData
	}
}

func (s kvSchema) Boundary(line string) (Index, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "== ")), 64)
	if err != nil {
		return Index{}, fmt.Errorf("bad marker")
	}
	return Index{Axis: AxisTime, Value: v}, nil
}

func (s kvSchema) Row(line string) (Field, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || len(parts) > 3 {
		return Field{}, fmt.Errorf("expected 2 or 3 tokens, got %d", len(parts))
	}
	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Field{}, fmt.Errorf("numeric coercion of %q failed", parts[1])
	}
	f := Field{Name: parts[0], Value: v}
	if len(parts) == 3 {
		f.Unit = parts[2]
	}
	return f, nil
}

func (s kvSchema) ImplicitIndex() (Index, bool) {
	if !s.implicit {
		return Index{}, false
	}
	return Index{Axis: AxisRegion, Label: "all"}, true
}

func (s kvSchema) CheckOrder(prev, next Index) error {
	if s.unordered {
		return nil
	}
	if next.Value < prev.Value {
		return fmt.Errorf("index %g precedes %g", next.Value, prev.Value)
	}
	return nil
}

func (s kvSchema) Ordered() bool { return !s.unordered }

func (s kvSchema) Complete(values map[string]float64) bool { return len(values) > 0 }

func (s kvSchema) DefaultUnits() map[string]string { return map[string]string{"power": "MW"} }

func openKV(t *testing.T, cfg Config, content string) *Reader {
	t.Helper()
	return openKVSchema(t, kvSchema{}, cfg, content)
}

func openKVSchema(t *testing.T, s kvSchema, cfg Config, content string) *Reader {
	t.Helper()
	r, err := New(s, cfg)
	require.NoError(t, err)
	require.NoError(t, r.Open(testutil.TempSource(t, "run.out", content)))
	t.Cleanup(func() { r.Close() })
	return r
}

func drain(t *testing.T, r *Reader) []Point {
	t.Helper()
	var pts []Point
	for r.Next() {
		pts = append(pts, r.Point())
	}
	return pts
}

const twoBlocks = `# solver banner
== 1
power 100 MW
flux 2.5
== 2
power 102.5 MW
flux 2.6
`

func TestReader_TwoBlocks_EmitsTwoPoints(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 2)

	assert.True(t, pts[0].Index().Equal(Index{Axis: AxisTime, Value: 1}))
	v, _ := pts[0].Value("power")
	assert.Equal(t, 100.0, v)
	v, _ = pts[1].Value("power")
	assert.Equal(t, 102.5, v)
	assert.True(t, pts[0].Less(pts[1]))

	d := r.Diagnostics()
	assert.Equal(t, int64(7), d.LinesRead)
	assert.Equal(t, int64(1), d.HeaderLines)
	assert.Equal(t, int64(2), d.BoundaryLines)
	assert.Equal(t, int64(4), d.DataRows)
	assert.Equal(t, int64(2), d.PointsEmitted)
	assert.Equal(t, d.DataRows, d.AcceptedRows+d.SkippedRows+d.DiscardedRows)
}

func TestReader_New_RejectsNilSchemaAndBadConfig(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
	_, err = New(kvSchema{}, Config{Recovery: "retry"})
	assert.Error(t, err)
}

func TestReader_NextBeforeOpen_InvalidState(t *testing.T) {
	r, err := New(kvSchema{}, Config{})
	require.NoError(t, err)
	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), ErrInvalidState)
}

func TestReader_DoubleOpen_InvalidState(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	err := r.Open("-")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReader_OpenMissingFile_SourceError(t *testing.T) {
	r, err := New(kvSchema{}, Config{})
	require.NoError(t, err)
	err = r.Open("/no/such/run.out")
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "/no/such/run.out", srcErr.Source)
}

func TestReader_NextAfterClose_InvalidState(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	require.NoError(t, r.Close())
	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), ErrInvalidState)
}

func TestReader_CloseIdempotent(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestReader_ExhaustionAutoCloses(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	drain(t, r)
	require.NoError(t, r.Err())
	assert.Nil(t, r.src)
	// Post-exhaustion Next is a clean no, not a lifecycle error.
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}

func TestReader_MalformedRow_SkipPolicyCountsRow(t *testing.T) {
	r := openKV(t, Config{}, "== 1\npower abc\nflux 2.5\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 1)
	_, ok := pts[0].Value("power")
	assert.False(t, ok)

	d := r.Diagnostics()
	assert.Equal(t, int64(1), d.SkippedRows)
	assert.Equal(t, int64(2), d.DataRows)
	assert.Equal(t, d.DataRows, d.AcceptedRows+d.SkippedRows+d.DiscardedRows)
}

func TestReader_MalformedRow_FailFastStopsAtCursor(t *testing.T) {
	r := openKV(t, Config{Recovery: RecoveryFailFast}, "== 1\npower 100\npower abc\n")
	pts := drain(t, r)
	assert.Empty(t, pts)

	var mErr *MalformedRecordError
	require.ErrorAs(t, r.Err(), &mErr)
	assert.Equal(t, 3, mErr.Cursor.Line)
	assert.Contains(t, mErr.Reason, "coercion")
	// The stream is released on failure.
	assert.Nil(t, r.src)
}

func TestReader_OutOfOrderBlock_Skipped(t *testing.T) {
	r := openKV(t, Config{}, "== 2\npower 100\n== 1\npower 50\n== 3\npower 75\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 2)
	assert.Equal(t, 2.0, pts[0].Index().Value)
	assert.Equal(t, 3.0, pts[1].Index().Value)

	d := r.Diagnostics()
	assert.Equal(t, int64(1), d.SkippedBlocks)
	assert.Equal(t, int64(1), d.DiscardedRows)
	assert.Equal(t, d.DataRows, d.AcceptedRows+d.SkippedRows+d.DiscardedRows)
}

func TestReader_OutOfOrderBlock_FailFast(t *testing.T) {
	r := openKV(t, Config{Recovery: RecoveryFailFast}, "== 2\npower 100\n== 1\npower 50\n")
	pts := drain(t, r)
	assert.Empty(t, pts)
	var mErr *MalformedRecordError
	require.ErrorAs(t, r.Err(), &mErr)
	assert.Equal(t, 3, mErr.Cursor.Line)
}

func TestReader_DuplicateIndex_LastWins(t *testing.T) {
	r := openKV(t, Config{}, "== 1\npower 100\n== 1\npower 200\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 1)
	v, _ := pts[0].Value("power")
	assert.Equal(t, 200.0, v)
	assert.Equal(t, int64(1), r.Diagnostics().DuplicatesResolved)
}

func TestReader_DuplicateIndex_FirstWins(t *testing.T) {
	r := openKV(t, Config{Duplicates: DuplicateFirstWins}, "== 1\npower 100\n== 1\npower 200\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 1)
	v, _ := pts[0].Value("power")
	assert.Equal(t, 100.0, v)
}

func TestReader_DuplicateIndex_ErrorPolicy(t *testing.T) {
	r := openKV(t, Config{Duplicates: DuplicateError}, "== 1\npower 100\n== 1\npower 200\n")
	pts := drain(t, r)
	assert.Empty(t, pts)
	var dErr *DuplicateIndexError
	require.ErrorAs(t, r.Err(), &dErr)
	assert.True(t, dErr.Index.Equal(Index{Axis: AxisTime, Value: 1}))
}

func TestReader_TruncatedFinalBlock_Discarded(t *testing.T) {
	r := openKV(t, Config{}, "== 1\npower 100\n== 2\n# stream cut off here\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 1)

	d := r.Diagnostics()
	assert.True(t, d.TruncatedTail)
	assert.Equal(t, d.DataRows, d.AcceptedRows+d.SkippedRows+d.DiscardedRows)
}

func TestReader_IncompleteMidStreamBlock_Skipped(t *testing.T) {
	r := openKV(t, Config{}, "== 1\n# nothing in this block\n== 2\npower 100\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 1)
	assert.Equal(t, 2.0, pts[0].Index().Value)
	assert.Equal(t, int64(1), r.Diagnostics().SkippedBlocks)
}

func TestReader_DefaultUnits_SchemaThenConfig(t *testing.T) {
	r := openKV(t, Config{}, "== 1\npower 100\n")
	pts := drain(t, r)
	require.Len(t, pts, 1)
	u, _ := pts[0].Unit("power")
	assert.Equal(t, "MW", u) // schema default

	r = openKV(t, Config{DefaultUnits: map[string]string{"power": "GW"}}, "== 1\npower 100\n")
	pts = drain(t, r)
	require.Len(t, pts, 1)
	u, _ = pts[0].Unit("power")
	assert.Equal(t, "GW", u) // config overrides schema
}

func TestReader_UnitChange_SurfacedNotSilent(t *testing.T) {
	r := openKV(t, Config{}, "== 1\npower 100 MW\n== 2\npower 100000 kW\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 2)
	u, _ := pts[1].Unit("power")
	assert.Equal(t, "kW", u)

	d := r.Diagnostics()
	require.Len(t, d.UnitChanges, 1)
	assert.Equal(t, "power", d.UnitChanges[0].Quantity)
	assert.Equal(t, "MW", d.UnitChanges[0].From)
	assert.Equal(t, "kW", d.UnitChanges[0].To)
}

func TestReader_ImplicitBlock_SingleAggregatePoint(t *testing.T) {
	r := openKVSchema(t, kvSchema{implicit: true, unordered: true}, Config{},
		"# banner prose that is not a row\npower 100\nflux 2.5\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 1)
	assert.Equal(t, "all", pts[0].Index().Label)
	assert.Equal(t, 2, pts[0].Len())
}

func TestReader_ConvergedMarker_FlagsCurrentBlock(t *testing.T) {
	r := openKV(t, Config{}, "== 1\npower 100\n== 2\npower 101\n!converged\n")
	pts := drain(t, r)
	require.NoError(t, r.Err())
	require.Len(t, pts, 2)
	assert.False(t, pts[0].Converged())
	assert.True(t, pts[1].Converged())
}

func TestReader_Determinism_TwoReadsElementWiseEqual(t *testing.T) {
	path := testutil.TempSource(t, "run.out", twoBlocks)
	read := func() []Point {
		r, err := New(kvSchema{}, Config{})
		require.NoError(t, err)
		require.NoError(t, r.Open(path))
		defer r.Close()
		pts := drain(t, r)
		require.NoError(t, r.Err())
		return pts
	}
	first, second := read(), read()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}

func TestReader_GzipSource_SameAsPlain(t *testing.T) {
	plain, err := New(kvSchema{}, Config{})
	require.NoError(t, err)
	require.NoError(t, plain.Open(testutil.TempSource(t, "run.out", twoBlocks)))
	defer plain.Close()

	zipped, err := New(kvSchema{}, Config{})
	require.NoError(t, err)
	require.NoError(t, zipped.Open(testutil.TempGzipSource(t, "run.out.gz", twoBlocks)))
	defer zipped.Close()

	p1, p2 := drain(t, plain), drain(t, zipped)
	require.NoError(t, plain.Err())
	require.NoError(t, zipped.Err())
	require.Equal(t, len(p1), len(p2))
	for i := range p1 {
		assert.True(t, p1[i].Equal(p2[i]))
	}
}

func TestReader_OpenStream_AdoptsOwnership(t *testing.T) {
	r, err := New(kvSchema{}, Config{})
	require.NoError(t, err)
	rc := &countingCloser{Reader: strings.NewReader(twoBlocks)}
	require.NoError(t, r.OpenStream(rc, "buffer"))
	pts := drain(t, r)
	require.NoError(t, r.Err())
	assert.Len(t, pts, 2)
	assert.Equal(t, 1, rc.closed)
}

func TestReader_Each_StopsOnContextCancel(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	ctx, cancel := context.WithCancel(context.Background())
	var n int
	err := r.Each(ctx, func(Point) error {
		n++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	// Abandoned iteration still released the stream.
	assert.Nil(t, r.src)
}

func TestReader_Each_PropagatesCallbackError(t *testing.T) {
	r := openKV(t, Config{}, twoBlocks)
	sentinel := errors.New("stop")
	err := r.Each(context.Background(), func(Point) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

type countingCloser struct {
	*strings.Reader
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}
