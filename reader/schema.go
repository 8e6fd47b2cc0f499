package reader

// LineClass partitions source lines for the extraction loop.
type LineClass int

const (
	// LineBlank is an empty or whitespace-only line.
	LineBlank LineClass = iota
	// LineHeader is recognized noise: comments, rule lines, banners.
	LineHeader
	// LineBoundary opens a new index context (time step, iteration, region).
	LineBoundary
	// LineData is a candidate data row inside the current context.
	LineData
	// LineConverged flags the current context as the accepted terminal state.
	LineConverged
)

// Mode names the simulation output family a schema parses.
type Mode string

const (
	ModeTransient   Mode = "transient"
	ModeKEigenvalue Mode = "k-eigenvalue"
	ModeSteadyState Mode = "steady-state"
)

// Field is one parsed data-row entry.
type Field struct {
	Name  string
	Value float64
	Unit  string // empty when the source omits the unit
}

// Schema supplies the mode-specific grammar the base engine is parameterized
// by: line classification, boundary and row parsing, the per-mode ordering
// invariant, and record completeness. Implementations are stateless; all
// run state lives in the engine.
type Schema interface {
	// Mode names the output family.
	Mode() Mode
	// Classify decides what kind of line this is. Lines classified LineData
	// are handed to Row; lines classified LineBoundary are handed to Boundary.
	Classify(line string) LineClass
	// Boundary extracts the new index context from a section marker.
	Boundary(line string) (Index, error)
	// Row tokenizes one data row. A failure (bad token count, numeric
	// coercion) marks the row malformed, subject to the recovery policy.
	Row(line string) (Field, error)
	// ImplicitIndex returns the sentinel index used to open a block when data
	// rows appear before any boundary marker. Only single-state output
	// (steady-state aggregate) reports ok=true.
	ImplicitIndex() (Index, bool)
	// CheckOrder validates the index progression between two distinct
	// accepted contexts. A violation marks the newer block malformed.
	CheckOrder(prev, next Index) error
	// Ordered reports whether the index axis is ordered. On unordered axes
	// (regions) the engine additionally tracks seen indices to catch
	// non-adjacent duplicates.
	Ordered() bool
	// Complete reports whether a block holds the quantities required to emit
	// a Point. Incomplete blocks are skipped (mid-stream) or discarded as a
	// truncated tail (end of stream).
	Complete(values map[string]float64) bool
	// DefaultUnits declares the fallback unit table for quantities whose rows
	// omit an explicit unit. Keys may end in "*" for prefix matches.
	DefaultUnits() map[string]string
}
