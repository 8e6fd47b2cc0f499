// Package neutronics provides the output schemas for the pdes
// NeutronDiffusion solver family: transient (one block per time step),
// k-eigenvalue (one block per power iteration), and steady-state (one block
// per region, or a single aggregate state).
//
// Shared lexical rules: blank lines and "#" comments are noise; lines made
// only of '=', '-', or '*' are rules; data rows are "name [=] value [unit]"
// with Fortran 'D' exponents accepted.
package neutronics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/neutronics-io/neutronics-io/reader"
)

// regexpMustCompileFold compiles a marker pattern case-insensitively; solver
// versions differ in banner capitalization.
func regexpMustCompileFold(expr string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + expr)
}

var (
	ruleRe = regexp.MustCompile(`^[=*\-]+$`)
	rowRe  = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.\-]*)(?:\s*=\s*|\s+)([-+]?[0-9]*\.?[0-9]+(?:[eEdD][-+]?[0-9]+)?)(?:\s+(\S+))?\s*$`)
)

// classifyCommon handles the lexical classes shared by all three modes.
// ok=false means the line is a candidate marker or data row for the mode to
// classify further.
func classifyCommon(line string) (reader.LineClass, bool) {
	t := strings.TrimSpace(line)
	if t == "" {
		return reader.LineBlank, true
	}
	if strings.HasPrefix(t, "#") {
		return reader.LineHeader, true
	}
	if ruleRe.MatchString(t) {
		return reader.LineHeader, true
	}
	return 0, false
}

// parseRow tokenizes a "name [=] value [unit]" data row.
func parseRow(line string) (reader.Field, error) {
	m := rowRe.FindStringSubmatch(line)
	if m == nil {
		return reader.Field{}, fmt.Errorf(`expected "name value [unit]"`)
	}
	v, err := parseFloat(m[2])
	if err != nil {
		return reader.Field{}, err
	}
	return reader.Field{Name: m[1], Value: v, Unit: m[3]}, nil
}

// parseFloat coerces one numeric token, accepting Fortran-style exponents
// (1.2D+03 reads as 1.2E+03).
func parseFloat(tok string) (float64, error) {
	norm := strings.Map(func(r rune) rune {
		if r == 'd' || r == 'D' {
			return 'E'
		}
		return r
	}, tok)
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, fmt.Errorf("numeric coercion of %q failed", tok)
	}
	return v, nil
}

// NewTransientReader builds a reader for time-series output.
func NewTransientReader(cfg reader.Config) (*reader.Reader, error) {
	return reader.New(TransientSchema{}, cfg)
}

// NewKEigenvalueReader builds a reader for eigenvalue-iteration output.
func NewKEigenvalueReader(cfg reader.Config) (*reader.Reader, error) {
	return reader.New(KEigenvalueSchema{}, cfg)
}

// NewSteadyStateReader builds a reader for single-state or per-region output.
func NewSteadyStateReader(cfg reader.Config) (*reader.Reader, error) {
	return reader.New(SteadyStateSchema{}, cfg)
}

// NewReader builds a reader for the named mode.
func NewReader(mode string, cfg reader.Config) (*reader.Reader, error) {
	switch reader.Mode(mode) {
	case reader.ModeTransient:
		return NewTransientReader(cfg)
	case reader.ModeKEigenvalue:
		return NewKEigenvalueReader(cfg)
	case reader.ModeSteadyState:
		return NewSteadyStateReader(cfg)
	default:
		return nil, fmt.Errorf("neutronics: unknown mode %q (valid: %s, %s, %s)",
			mode, reader.ModeTransient, reader.ModeKEigenvalue, reader.ModeSteadyState)
	}
}
