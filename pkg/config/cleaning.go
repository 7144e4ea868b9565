// pkg/config/cleaning.go
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// CleaningConfig holds the per-run cleaning options. Column references may use
// either the original header or its normalized snake_case form.
type CleaningConfig struct {
	// Imputation
	ImputeStrategy        map[string]string `yaml:"impute_strategy" toml:"impute_strategy"`
	DefaultImputeStrategy string            `yaml:"default_impute_strategy" toml:"default_impute_strategy"`

	// Profiling overrides
	ColumnTypes       map[string]string `yaml:"column_types" toml:"column_types"`
	ProfileDateFormat string            `yaml:"profile_date_format" toml:"profile_date_format"`

	// Fuzzy deduplication
	FuzzyColumns   []string `yaml:"fuzzy_columns" toml:"fuzzy_columns"`
	FuzzyThreshold float64  `yaml:"fuzzy_threshold" toml:"fuzzy_threshold"`
	FuzzyMetric    string   `yaml:"fuzzy_metric" toml:"fuzzy_metric"`

	// Date parsing: column -> strftime format
	DateFormat map[string]string `yaml:"date_format" toml:"date_format"`

	// Scaling
	ScaleColumns []string `yaml:"scale_columns" toml:"scale_columns"`
	ScaleMethod  string   `yaml:"scale_method" toml:"scale_method"`

	// Columns whose missing ratio exceeds this are dropped; 0 disables pruning
	NullityThreshold float64 `yaml:"nullity_threshold" toml:"nullity_threshold"`

	Outliers *OutlierConfig `yaml:"outliers" toml:"outliers"`
}

// OutlierConfig enables the outlier handling stage
type OutlierConfig struct {
	Method  string   `yaml:"method" toml:"method"`
	Action  string   `yaml:"action" toml:"action"`
	Columns []string `yaml:"columns" toml:"columns"`
}

// DefaultCleaningConfig returns the configuration used when no file is given
func DefaultCleaningConfig() *CleaningConfig {
	return &CleaningConfig{
		ImputeStrategy:        map[string]string{},
		DefaultImputeStrategy: string(cleaner.StrategyNone),
		ColumnTypes:           map[string]string{},
		FuzzyThreshold:        cleaner.DefaultFuzzyThreshold,
		FuzzyMetric:           string(cleaner.MetricEditRatio),
		DateFormat:            map[string]string{},
		ScaleMethod:           string(cleaner.ScaleMinMax),
	}
}

// LoadCleaningConfig reads a YAML (.yaml, .yml) or TOML (.toml) file on top of
// the defaults. Unknown keys are rejected and the result is validated.
func LoadCleaningConfig(path string) (*CleaningConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cleaning config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseCleaningTOML(data)
	case ".yaml", ".yml":
		return ParseCleaningYAML(data)
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported cleaning config extension %q", filepath.Ext(path)),
			"use a .yaml, .yml or .toml file",
		)
	}
}

// ParseCleaningYAML decodes and validates a YAML cleaning configuration
func ParseCleaningYAML(data []byte) (*CleaningConfig, error) {
	cfg := DefaultCleaningConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to parse cleaning config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseCleaningTOML decodes and validates a TOML cleaning configuration
func ParseCleaningTOML(data []byte) (*CleaningConfig, error) {
	cfg := DefaultCleaningConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse cleaning config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Newf("unknown cleaning config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations, thresholds and format specifiers. Column
// references are checked later against the live table.
func (c *CleaningConfig) Validate() error {
	for col, s := range c.ImputeStrategy {
		if _, err := cleaner.ParseStrategy(s); err != nil {
			return errors.Wrapf(err, "impute_strategy[%s]", col)
		}
	}
	if _, err := cleaner.ParseStrategy(c.DefaultImputeStrategy); err != nil {
		return errors.Wrap(err, "default_impute_strategy")
	}

	for col, s := range c.ColumnTypes {
		if _, err := model.ParseSemanticType(s); err != nil {
			return errors.Wrapf(err, "column_types[%s]", col)
		}
	}
	if c.ProfileDateFormat != "" {
		if _, err := converter.DateLayout(c.ProfileDateFormat); err != nil {
			return errors.Wrap(err, "profile_date_format")
		}
	}

	if err := cleaner.ValidateThreshold(c.FuzzyThreshold); err != nil {
		return errors.Wrap(err, "fuzzy_threshold")
	}
	if _, err := cleaner.ParseMetric(c.FuzzyMetric); err != nil {
		return errors.Wrap(err, "fuzzy_metric")
	}

	for col, format := range c.DateFormat {
		if _, err := converter.DateLayout(format); err != nil {
			return errors.Wrapf(err, "date_format[%s]", col)
		}
	}

	if _, err := cleaner.ParseScaleMethod(c.ScaleMethod); err != nil {
		return errors.Wrap(err, "scale_method")
	}

	if c.NullityThreshold != 0 {
		if err := cleaner.ValidateThreshold(c.NullityThreshold); err != nil {
			return errors.Wrap(err, "nullity_threshold")
		}
	}

	if c.Outliers != nil {
		if m := strings.ToLower(c.Outliers.Method); m != "" && m != "iqr" {
			return errors.Wrapf(cleaner.ErrInvalidStrategy, "outliers.method %q", c.Outliers.Method)
		}
		if _, err := cleaner.ParseOutlierAction(c.Outliers.Action); err != nil {
			return errors.Wrap(err, "outliers.action")
		}
	}

	return nil
}

// ProtectedColumns lists references that later stages need and that nullity
// pruning must therefore keep
func (c *CleaningConfig) ProtectedColumns() []string {
	refs := make([]string, 0, len(c.DateFormat)+len(c.ScaleColumns))
	for col := range c.DateFormat {
		refs = append(refs, col)
	}
	return append(refs, c.ScaleColumns...)
}
