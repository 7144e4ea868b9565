package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
)

const sampleYAML = `
impute_strategy:
  Age: median
  City: mode
default_impute_strategy: none
column_types:
  zip: string
fuzzy_columns: [email]
fuzzy_threshold: 0.85
date_format:
  signupdate: "%Y-%m-%d"
scale_columns: [income]
scale_method: standard
nullity_threshold: 0.8
outliers:
  method: iqr
  action: cap
  columns: [income]
`

func TestParseCleaningYAML(t *testing.T) {
	cfg, err := ParseCleaningYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "median", cfg.ImputeStrategy["Age"])
	assert.Equal(t, []string{"email"}, cfg.FuzzyColumns)
	assert.Equal(t, 0.85, cfg.FuzzyThreshold)
	assert.Equal(t, "edit_ratio", cfg.FuzzyMetric)
	assert.Equal(t, "%Y-%m-%d", cfg.DateFormat["signupdate"])
	assert.Equal(t, "standard", cfg.ScaleMethod)
	require.NotNil(t, cfg.Outliers)
	assert.Equal(t, "cap", cfg.Outliers.Action)
	assert.ElementsMatch(t, []string{"signupdate", "income"}, cfg.ProtectedColumns())
}

func TestParseCleaningYAMLEmptyUsesDefaults(t *testing.T) {
	cfg, err := ParseCleaningYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, cleaner.DefaultFuzzyThreshold, cfg.FuzzyThreshold)
	assert.Equal(t, "none", cfg.DefaultImputeStrategy)
	assert.Equal(t, "minmax", cfg.ScaleMethod)
	assert.Nil(t, cfg.Outliers)
}

func TestParseCleaningYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseCleaningYAML([]byte("fuzzy_treshold: 0.9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuzzy_treshold")
}

func TestParseCleaningTOML(t *testing.T) {
	cfg, err := ParseCleaningTOML([]byte(`
fuzzy_columns = ["email"]
fuzzy_threshold = 0.95
scale_columns = ["score"]

[impute_strategy]
Age = "mean"

[date_format]
joined = "%d/%m/%Y"
`))
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.FuzzyThreshold)
	assert.Equal(t, "mean", cfg.ImputeStrategy["Age"])
	assert.Equal(t, "%d/%m/%Y", cfg.DateFormat["joined"])

	_, err = ParseCleaningTOML([]byte("colour = \"red\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CleaningConfig)
		target error
	}{
		{"threshold zero", func(c *CleaningConfig) { c.FuzzyThreshold = 0 }, cleaner.ErrInvalidThreshold},
		{"threshold above one", func(c *CleaningConfig) { c.FuzzyThreshold = 1.2 }, cleaner.ErrInvalidThreshold},
		{"strategy", func(c *CleaningConfig) { c.ImputeStrategy["a"] = "zero" }, cleaner.ErrInvalidStrategy},
		{"metric", func(c *CleaningConfig) { c.FuzzyMetric = "soundex" }, cleaner.ErrInvalidStrategy},
		{"date format", func(c *CleaningConfig) { c.DateFormat["d"] = "dd/mm/yyyy" }, cleaner.ErrInvalidFormat},
		{"scale method", func(c *CleaningConfig) { c.ScaleMethod = "log" }, cleaner.ErrInvalidStrategy},
		{"nullity", func(c *CleaningConfig) { c.NullityThreshold = -1 }, cleaner.ErrInvalidThreshold},
		{"outlier action", func(c *CleaningConfig) { c.Outliers = &OutlierConfig{Action: "winsorize"} }, cleaner.ErrInvalidStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCleaningConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	cfg := DefaultCleaningConfig()
	cfg.ColumnTypes["x"] = "decimal"
	assert.Error(t, cfg.Validate())
}

func TestLoadCleaningConfigByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o600))
	cfg, err := LoadCleaningConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.NullityThreshold)

	jsonPath := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	_, err = LoadCleaningConfig(jsonPath)
	assert.Error(t, err)

	_, err = LoadCleaningConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
