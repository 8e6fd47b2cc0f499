package reader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RecoveryPolicy selects the reaction to malformed input.
type RecoveryPolicy string

const (
	// RecoverySkip counts and excludes malformed rows, then keeps reading.
	RecoverySkip RecoveryPolicy = "skip"
	// RecoveryFailFast halts the sequence at the first malformed row with the
	// offending cursor position attached.
	RecoveryFailFast RecoveryPolicy = "fail-fast"
)

// DuplicatePolicy selects the resolution when the same index appears twice,
// as happens with simulation restart blocks.
type DuplicatePolicy string

const (
	DuplicateLastWins  DuplicatePolicy = "last-wins"
	DuplicateFirstWins DuplicatePolicy = "first-wins"
	DuplicateError     DuplicatePolicy = "error"
)

// ValidRecoveryPolicies is the set of recognized recovery policy names.
// Empty string means "use the default" (skip).
var ValidRecoveryPolicies = map[RecoveryPolicy]bool{
	"": true, RecoverySkip: true, RecoveryFailFast: true,
}

// ValidDuplicatePolicies is the set of recognized duplicate policy names.
// Empty string means "use the default" (last-wins).
var ValidDuplicatePolicies = map[DuplicatePolicy]bool{
	"": true, DuplicateLastWins: true, DuplicateFirstWins: true, DuplicateError: true,
}

const defaultMaxLineBytes = 1 << 20

// Config holds the recognized reader options. The zero value is usable and
// selects skip recovery, last-wins duplicates, the schema's declared default
// units, and a 1 MiB line limit.
type Config struct {
	Recovery   RecoveryPolicy  `yaml:"recovery_policy"`
	Duplicates DuplicatePolicy `yaml:"duplicate_index_policy"`
	// DefaultUnits maps quantity names to unit tags applied when the source
	// omits an explicit unit. Entries here take precedence over the schema's
	// own defaults. A trailing "*" in a key matches by prefix.
	DefaultUnits map[string]string `yaml:"default_units"`
	MaxLineBytes int               `yaml:"max_line_bytes"`
}

// Validate checks that the policy names are recognized.
func (c Config) Validate() error {
	if !ValidRecoveryPolicies[c.Recovery] {
		return fmt.Errorf("reader config: unknown recovery_policy %q (valid: skip, fail-fast)", c.Recovery)
	}
	if !ValidDuplicatePolicies[c.Duplicates] {
		return fmt.Errorf("reader config: unknown duplicate_index_policy %q (valid: last-wins, first-wins, error)", c.Duplicates)
	}
	if c.MaxLineBytes < 0 {
		return fmt.Errorf("reader config: max_line_bytes must be >= 0, got %d", c.MaxLineBytes)
	}
	return nil
}

// withDefaults resolves empty fields to their defaults.
func (c Config) withDefaults() Config {
	if c.Recovery == "" {
		c.Recovery = RecoverySkip
	}
	if c.Duplicates == "" {
		c.Duplicates = DuplicateLastWins
	}
	if c.MaxLineBytes == 0 {
		c.MaxLineBytes = defaultMaxLineBytes
	}
	return c
}

// LoadConfig reads and parses a YAML reader configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading reader config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing reader config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// lookupUnit resolves a quantity name against a defaults table, honoring
// prefix wildcards ("flux_*") and the catch-all "*". Exact entries win;
// among wildcards the longest prefix wins.
func lookupUnit(defaults map[string]string, name string) (string, bool) {
	if u, ok := defaults[name]; ok {
		return u, true
	}
	best, found := "", false
	var bestLen int
	for key, u := range defaults {
		n := len(key)
		if n == 0 || key[n-1] != '*' {
			continue
		}
		prefix := key[:n-1]
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			if !found || len(prefix) > bestLen {
				best, found, bestLen = u, true, len(prefix)
			}
		}
	}
	return best, found
}
