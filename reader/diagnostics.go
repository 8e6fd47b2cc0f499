package reader

// UnitChange records a mid-stream unit change for one quantity. The new unit
// is applied to the Point (the source declared it) but the change is never
// silent: it is logged and listed here.
type UnitChange struct {
	Quantity string `json:"quantity"`
	From     string `json:"from"`
	To       string `json:"to"`
	Cursor   Cursor `json:"-"`
}

// Diagnostics summarizes one reader run. It is complete once iteration has
// exhausted the stream (or failed); nothing that was read vanishes without
// being counted: DataRows == AcceptedRows + SkippedRows + DiscardedRows.
type Diagnostics struct {
	LinesRead     int64 // every line consumed from the source
	BlankLines    int64
	HeaderLines   int64 // comments, rules, banners, pre-block preamble
	BoundaryLines int64 // section and convergence markers
	DataRows      int64 // candidate data rows inside blocks

	AcceptedRows  int64 // rows that made it into an emitted Point
	SkippedRows   int64 // malformed rows excluded under the skip policy
	DiscardedRows int64 // rows of skipped blocks, duplicate losers, truncated tail

	SkippedBlocks      int64 // blocks dropped for ordering or completeness faults
	DuplicatesResolved int64 // repeated indices resolved by the duplicate policy
	TruncatedTail      bool  // stream ended mid-block; the partial record was dropped

	PointsEmitted int64
	UnitChanges   []UnitChange
	Cursor        Cursor // position at exhaustion, failure, or close
}
