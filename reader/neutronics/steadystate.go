package neutronics

import (
	"fmt"
	"strings"

	"github.com/neutronics-io/neutronics-io/reader"
)

// regionRe matches markers like "***** Region fuel-1 *****".
var regionRe = regexpMustCompileFold(`^\*+\s*region\s+([^\s*]+)\s*\**$`)

// AggregateRegion is the sentinel region label for single-state output that
// carries no region markers at all.
const AggregateRegion = "core"

// SteadyStateSchema parses fixed-state output: one block per region, or one
// aggregate block for the whole run when no region markers appear. There is
// no temporal axis, so ordering is never validated; repeated regions are
// duplicates.
type SteadyStateSchema struct{}

func (SteadyStateSchema) Mode() reader.Mode { return reader.ModeSteadyState }

func (SteadyStateSchema) Classify(line string) reader.LineClass {
	if c, ok := classifyCommon(line); ok {
		return c
	}
	if regionRe.MatchString(strings.TrimSpace(line)) {
		return reader.LineBoundary
	}
	return reader.LineData
}

func (SteadyStateSchema) Boundary(line string) (reader.Index, error) {
	m := regionRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return reader.Index{}, fmt.Errorf("not a region marker")
	}
	return reader.Index{Axis: reader.AxisRegion, Label: m[1]}, nil
}

func (SteadyStateSchema) Row(line string) (reader.Field, error) { return parseRow(line) }

// ImplicitIndex lets a markerless stream form a single aggregate block.
func (SteadyStateSchema) ImplicitIndex() (reader.Index, bool) {
	return reader.Index{Axis: reader.AxisRegion, Label: AggregateRegion}, true
}

func (SteadyStateSchema) CheckOrder(prev, next reader.Index) error { return nil }

func (SteadyStateSchema) Ordered() bool { return false }

func (SteadyStateSchema) Complete(values map[string]float64) bool {
	return len(values) > 0
}

func (SteadyStateSchema) DefaultUnits() map[string]string {
	return map[string]string{
		"power":  "MW",
		"flux*":  "n/cm^2-s",
		"temp*":  "K",
		"volume": "cm^3",
	}
}
