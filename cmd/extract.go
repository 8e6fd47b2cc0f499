package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neutronics-io/neutronics-io/reader"
	"github.com/neutronics-io/neutronics-io/reader/neutronics"
)

var (
	mode            string // Simulation output mode (transient, k-eigenvalue, steady-state)
	format          string // Output format (csv or json)
	configPath      string // Optional YAML reader configuration file
	outPath         string // Output file ("" = stdout)
	summaryQuantity string // Quantity to summarize after extraction
	recoveryFlag    string // Recovery policy override
	duplicatesFlag  string // Duplicate index policy override
)

// extractCmd converts one simulation output source into structured records
var extractCmd = &cobra.Command{
	Use:   "extract [flags] SOURCE",
	Short: "Extract sample points from simulation output",
	Long: `Extract streams a simulation output file (plain, gzip, or "-" for stdin)
through the mode-specific reader and writes one row per quantity sample.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := buildConfig(configPath, recoveryFlag, duplicatesFlag)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		r, err := neutronics.NewReader(mode, cfg)
		if err != nil {
			logrus.Fatalf("Could not build %s reader: %v", mode, err)
		}
		if err := r.Open(args[0]); err != nil {
			logrus.Fatalf("Could not open %s: %v", args[0], err)
		}
		defer r.Close()

		out := io.Writer(os.Stdout)
		if outPath != "" {
			fh, err := os.Create(outPath)
			if err != nil {
				logrus.Fatalf("Could not create %s: %v", outPath, err)
			}
			defer fh.Close()
			out = fh
		}

		var samples []float64
		write, flush, err := newPointWriter(out, format)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		for r.Next() {
			pt := r.Point()
			if err := write(pt); err != nil {
				logrus.Fatalf("Could not write point %s: %v", pt.Index(), err)
			}
			if summaryQuantity != "" {
				if v, ok := pt.Value(summaryQuantity); ok {
					samples = append(samples, v)
				}
			}
		}
		if err := r.Err(); err != nil {
			logrus.Fatalf("Extraction failed: %v", err)
		}
		if err := flush(); err != nil {
			logrus.Fatalf("Could not flush output: %v", err)
		}

		d := r.Diagnostics()
		logrus.Infof("Extracted %d points from %s: %d lines read, %d rows accepted, %d skipped, %d discarded, %d duplicates resolved",
			d.PointsEmitted, args[0], d.LinesRead, d.AcceptedRows, d.SkippedRows, d.DiscardedRows, d.DuplicatesResolved)
		for _, uc := range d.UnitChanges {
			logrus.Warnf("Unit of %q changed mid-stream from %q to %q", uc.Quantity, uc.From, uc.To)
		}

		if summaryQuantity != "" {
			s := summarize(samples)
			fmt.Fprintf(os.Stderr, "%s: n=%d mean=%g min=%g max=%g p50=%g p90=%g p99=%g\n",
				summaryQuantity, s.Count, s.Mean, s.Min, s.Max, s.P50, s.P90, s.P99)
		}
	},
}

// newPointWriter builds a per-point writer plus a final flush for the chosen
// format.
func newPointWriter(out io.Writer, format string) (func(reader.Point) error, func() error, error) {
	switch format {
	case "csv":
		w := csv.NewWriter(out)
		if err := w.Write([]string{"index", "quantity", "value", "unit"}); err != nil {
			return nil, nil, err
		}
		write := func(pt reader.Point) error {
			idx := formatIndex(pt.Index())
			for _, name := range pt.Quantities() {
				v, _ := pt.Value(name)
				u, _ := pt.Unit(name)
				rec := []string{idx, name, strconv.FormatFloat(v, 'g', -1, 64), u}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
			return nil
		}
		flush := func() error {
			w.Flush()
			return w.Error()
		}
		return write, flush, nil
	case "json":
		first := true
		write := func(pt reader.Point) error {
			sep := ",\n"
			if first {
				sep = "[\n"
				first = false
			}
			data, err := pt.MarshalJSON()
			if err != nil {
				return err
			}
			if _, err := io.WriteString(out, sep); err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}
		flush := func() error {
			if first {
				_, err := io.WriteString(out, "[]\n")
				return err
			}
			_, err := io.WriteString(out, "\n]\n")
			return err
		}
		return write, flush, nil
	default:
		return nil, nil, fmt.Errorf("unknown format %q (valid: csv, json)", format)
	}
}

func formatIndex(idx reader.Index) string {
	switch idx.Axis {
	case reader.AxisIteration:
		return strconv.Itoa(idx.Step)
	case reader.AxisRegion:
		return idx.Label
	default:
		return strconv.FormatFloat(idx.Value, 'g', -1, 64)
	}
}

// buildConfig loads the optional YAML config and applies flag overrides.
func buildConfig(path, recovery, duplicates string) (reader.Config, error) {
	var cfg reader.Config
	if path != "" {
		loaded, err := reader.LoadConfig(path)
		if err != nil {
			return reader.Config{}, err
		}
		cfg = loaded
	}
	if recovery != "" {
		cfg.Recovery = reader.RecoveryPolicy(recovery)
	}
	if duplicates != "" {
		cfg.Duplicates = reader.DuplicatePolicy(duplicates)
	}
	return cfg, cfg.Validate()
}

// init sets up extract flags
func init() {
	extractCmd.Flags().StringVar(&mode, "mode", "transient", "Output mode (transient, k-eigenvalue, steady-state)")
	extractCmd.Flags().StringVar(&format, "format", "csv", "Output format (csv, json)")
	extractCmd.Flags().StringVar(&configPath, "config", "", "YAML reader configuration file")
	extractCmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	extractCmd.Flags().StringVar(&summaryQuantity, "summary", "", "Print summary statistics for one quantity")
	extractCmd.Flags().StringVar(&recoveryFlag, "recovery", "", "Recovery policy override (skip, fail-fast)")
	extractCmd.Flags().StringVar(&duplicatesFlag, "duplicates", "", "Duplicate index policy override (last-wins, first-wins, error)")
}
