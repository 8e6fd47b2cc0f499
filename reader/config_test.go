package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neutronics-io/neutronics-io/reader/internal/testutil"
)

func TestConfig_ZeroValueIsValid(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, RecoverySkip, cfg.Recovery)
	assert.Equal(t, DuplicateLastWins, cfg.Duplicates)
	assert.Equal(t, defaultMaxLineBytes, cfg.MaxLineBytes)
}

func TestConfig_UnknownPolicies(t *testing.T) {
	assert.Error(t, Config{Recovery: "retry"}.Validate())
	assert.Error(t, Config{Duplicates: "merge"}.Validate())
	assert.Error(t, Config{MaxLineBytes: -1}.Validate())
}

func TestLoadConfig_YAML(t *testing.T) {
	path := testutil.TempSource(t, "reader.yaml", `
recovery_policy: fail-fast
duplicate_index_policy: first-wins
default_units:
  power: GW
  flux*: n/cm^2-s
max_line_bytes: 4096
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, RecoveryFailFast, cfg.Recovery)
	assert.Equal(t, DuplicateFirstWins, cfg.Duplicates)
	assert.Equal(t, "GW", cfg.DefaultUnits["power"])
	assert.Equal(t, 4096, cfg.MaxLineBytes)
}

func TestLoadConfig_RejectsUnknownPolicy(t *testing.T) {
	path := testutil.TempSource(t, "reader.yaml", "recovery_policy: ignore\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "recovery_policy")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/no/such/reader.yaml")
	assert.Error(t, err)
}

func TestLookupUnit_WildcardPrecedence(t *testing.T) {
	defaults := map[string]string{
		"power":      "MW",
		"flux*":      "n/cm^2-s",
		"flux_fast*": "1/cm^2-s",
		"*":          "-",
	}
	u, ok := lookupUnit(defaults, "power")
	assert.True(t, ok)
	assert.Equal(t, "MW", u)

	// Longest wildcard prefix wins.
	u, _ = lookupUnit(defaults, "flux_fast_core")
	assert.Equal(t, "1/cm^2-s", u)
	u, _ = lookupUnit(defaults, "flux_thermal")
	assert.Equal(t, "n/cm^2-s", u)

	// Catch-all.
	u, _ = lookupUnit(defaults, "k_eff")
	assert.Equal(t, "-", u)

	_, ok = lookupUnit(map[string]string{"power": "MW"}, "k_eff")
	assert.False(t, ok)
}
