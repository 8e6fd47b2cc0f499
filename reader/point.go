package reader

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Axis identifies the indexing dimension of a reader's output.
type Axis string

const (
	AxisTime      Axis = "time"
	AxisIteration Axis = "iteration"
	AxisRegion    Axis = "region"
)

// Index is a Point's position key within one reader run. Time-indexed output
// uses Value, iteration-indexed output uses Step (with Value mirroring it so
// ordering is uniform), and region-indexed output uses Label.
type Index struct {
	Axis  Axis
	Step  int     // source-declared step or iteration counter, 0 when absent
	Value float64 // time for AxisTime, iteration number for AxisIteration
	Label string  // region identifier for AxisRegion
}

// Equal reports whether two indices address the same sample position.
func (i Index) Equal(o Index) bool {
	return i.Axis == o.Axis && i.Value == o.Value && i.Label == o.Label
}

// Less orders indices by Value, then Label. Only meaningful within one
// reader's output, where the axis is uniform.
func (i Index) Less(o Index) bool {
	if i.Value != o.Value {
		return i.Value < o.Value
	}
	return i.Label < o.Label
}

func (i Index) String() string {
	switch i.Axis {
	case AxisIteration:
		return fmt.Sprintf("iteration %d", i.Step)
	case AxisRegion:
		return fmt.Sprintf("region %s", i.Label)
	default:
		return fmt.Sprintf("t=%g", i.Value)
	}
}

// key is the deduplication identity of the index.
func (i Index) key() string {
	return fmt.Sprintf("%g|%s", i.Value, i.Label)
}

// Point is one sampled measurement extracted from simulation output: an index
// plus named quantities and their unit tags. Points are immutable once
// constructed; the producing reader keeps no reference after yielding one.
type Point struct {
	index     Index
	values    map[string]float64
	units     map[string]string
	converged bool
}

// NewPoint validates and builds a Point. The input maps are copied. Every
// quantity present in values must have a unit entry (an empty tag means
// dimensionless but the entry itself is required).
func NewPoint(idx Index, values map[string]float64, units map[string]string) (Point, error) {
	if idx.Axis == "" {
		return Point{}, fmt.Errorf("point: index axis is required")
	}
	v := make(map[string]float64, len(values))
	u := make(map[string]string, len(values))
	for name, val := range values {
		tag, ok := units[name]
		if !ok {
			return Point{}, fmt.Errorf("point %s: quantity %q has no unit tag", idx, name)
		}
		v[name] = val
		u[name] = tag
	}
	return Point{index: idx, values: v, units: u}, nil
}

// Index returns the sample's position key.
func (p Point) Index() Index { return p.index }

// Len returns the number of quantities stored on the point.
func (p Point) Len() int { return len(p.values) }

// Converged reports whether this point was flagged as the accepted terminal
// state by a convergence marker (k-eigenvalue output only).
func (p Point) Converged() bool { return p.converged }

// Value returns the named quantity, if present.
func (p Point) Value(name string) (float64, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Unit returns the unit tag of the named quantity, if present.
func (p Point) Unit(name string) (string, bool) {
	u, ok := p.units[name]
	return u, ok
}

// Quantities returns the quantity names in sorted order.
func (p Point) Quantities() []string {
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports structural equality: same index, same quantities with the
// same values and unit tags, same convergence flag.
func (p Point) Equal(q Point) bool {
	if !p.index.Equal(q.index) || p.converged != q.converged || len(p.values) != len(q.values) {
		return false
	}
	for name, v := range p.values {
		if qv, ok := q.values[name]; !ok || qv != v {
			return false
		}
		if p.units[name] != q.units[name] {
			return false
		}
	}
	return true
}

// Less orders points by index, then by sorted (name, value) items, giving
// consumers a deterministic total order for deduplication and sorting.
func (p Point) Less(q Point) bool {
	if !p.index.Equal(q.index) {
		return p.index.Less(q.index)
	}
	pn, qn := p.Quantities(), q.Quantities()
	for i := 0; i < len(pn) && i < len(qn); i++ {
		if pn[i] != qn[i] {
			return pn[i] < qn[i]
		}
		if p.values[pn[i]] != q.values[qn[i]] {
			return p.values[pn[i]] < q.values[qn[i]]
		}
	}
	return len(pn) < len(qn)
}

// MarshalJSON emits a deterministic encoding: quantities appear as a sorted
// array, never as a randomly-ordered object.
func (p Point) MarshalJSON() ([]byte, error) {
	type quantity struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
		Unit  string  `json:"unit,omitempty"`
	}
	out := struct {
		Axis       Axis       `json:"axis"`
		Step       int        `json:"step,omitempty"`
		Index      float64    `json:"index"`
		Region     string     `json:"region,omitempty"`
		Converged  bool       `json:"converged,omitempty"`
		Quantities []quantity `json:"quantities"`
	}{
		Axis:      p.index.Axis,
		Step:      p.index.Step,
		Index:     p.index.Value,
		Region:    p.index.Label,
		Converged: p.converged,
	}
	for _, name := range p.Quantities() {
		out.Quantities = append(out.Quantities, quantity{Name: name, Value: p.values[name], Unit: p.units[name]})
	}
	return json.Marshal(out)
}
