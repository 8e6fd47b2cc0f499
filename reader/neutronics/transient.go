package neutronics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neutronics-io/neutronics-io/reader"
)

// timeStepRe matches markers like "***** Time Step 3, t = 3.0000e-01 s *****".
var timeStepRe = regexpMustCompileFold(`^\*+\s*time\s+step\s+(\d+)\s*,\s*t\s*=\s*([-+]?[0-9]*\.?[0-9]+(?:[eEdD][-+]?[0-9]+)?)(?:\s+([^\s*]+))?\s*\**$`)

// TransientSchema parses time-dependent output: one block per time step,
// indexed by simulation time. Time must be non-decreasing across accepted
// blocks; an equal time is a restart duplicate, an earlier time is malformed.
type TransientSchema struct{}

func (TransientSchema) Mode() reader.Mode { return reader.ModeTransient }

func (TransientSchema) Classify(line string) reader.LineClass {
	if c, ok := classifyCommon(line); ok {
		return c
	}
	if timeStepRe.MatchString(strings.TrimSpace(line)) {
		return reader.LineBoundary
	}
	return reader.LineData
}

func (TransientSchema) Boundary(line string) (reader.Index, error) {
	m := timeStepRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return reader.Index{}, fmt.Errorf("not a time step marker")
	}
	step, err := strconv.Atoi(m[1])
	if err != nil {
		return reader.Index{}, fmt.Errorf("bad step number %q", m[1])
	}
	t, err := parseFloat(m[2])
	if err != nil {
		return reader.Index{}, err
	}
	return reader.Index{Axis: reader.AxisTime, Step: step, Value: t}, nil
}

func (TransientSchema) Row(line string) (reader.Field, error) { return parseRow(line) }

func (TransientSchema) ImplicitIndex() (reader.Index, bool) { return reader.Index{}, false }

func (TransientSchema) CheckOrder(prev, next reader.Index) error {
	if next.Value < prev.Value {
		return fmt.Errorf("time %g precedes already-accepted time %g", next.Value, prev.Value)
	}
	return nil
}

func (TransientSchema) Ordered() bool { return true }

// Complete requires at least one power or flux quantity per time step.
func (TransientSchema) Complete(values map[string]float64) bool {
	for name := range values {
		if name == "power" || strings.HasPrefix(name, "flux") {
			return true
		}
	}
	return false
}

func (TransientSchema) DefaultUnits() map[string]string {
	return map[string]string{
		"time":   "s",
		"power":  "MW",
		"flux*":  "n/cm^2-s",
		"temp*":  "K",
		"rho":    "pcm",
		"source": "n/s",
	}
}
