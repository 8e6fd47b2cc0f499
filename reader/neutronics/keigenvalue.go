package neutronics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neutronics-io/neutronics-io/reader"
)

var (
	// iterationRe matches markers like "***** Iteration 7 *****".
	iterationRe = regexpMustCompileFold(`^\*+\s*iteration\s+(\d+)\s*\**$`)
	// convergedRe matches the convergence marker the solver prints after the
	// final accepted iteration, e.g. "***** CONVERGED *****".
	convergedRe = regexpMustCompileFold(`^\**\s*converged\b`)
)

// KEigenvalueSchema parses criticality-search output: one block per power
// iteration, indexed by iteration number. k_eff is required per block.
// Accepted iterations advance by exactly one; the convergence marker flags
// the final accepted eigenvalue so consumers need not re-scan.
type KEigenvalueSchema struct{}

func (KEigenvalueSchema) Mode() reader.Mode { return reader.ModeKEigenvalue }

func (KEigenvalueSchema) Classify(line string) reader.LineClass {
	if c, ok := classifyCommon(line); ok {
		return c
	}
	t := strings.TrimSpace(line)
	if convergedRe.MatchString(t) {
		return reader.LineConverged
	}
	if iterationRe.MatchString(t) {
		return reader.LineBoundary
	}
	return reader.LineData
}

func (KEigenvalueSchema) Boundary(line string) (reader.Index, error) {
	m := iterationRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return reader.Index{}, fmt.Errorf("not an iteration marker")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return reader.Index{}, fmt.Errorf("bad iteration number %q", m[1])
	}
	return reader.Index{Axis: reader.AxisIteration, Step: n, Value: float64(n)}, nil
}

func (KEigenvalueSchema) Row(line string) (reader.Field, error) { return parseRow(line) }

func (KEigenvalueSchema) ImplicitIndex() (reader.Index, bool) { return reader.Index{}, false }

func (KEigenvalueSchema) CheckOrder(prev, next reader.Index) error {
	if next.Step != prev.Step+1 {
		return fmt.Errorf("iteration %d does not follow accepted iteration %d", next.Step, prev.Step)
	}
	return nil
}

func (KEigenvalueSchema) Ordered() bool { return true }

// Complete requires the eigenvalue itself.
func (KEigenvalueSchema) Complete(values map[string]float64) bool {
	_, ok := values["k_eff"]
	return ok
}

// DefaultUnits declares every k-eigenvalue quantity dimensionless.
func (KEigenvalueSchema) DefaultUnits() map[string]string {
	return map[string]string{"*": "-"}
}
