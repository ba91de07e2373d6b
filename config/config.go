// Package config loads an experiment file describing one
// prepare → tune → select → last fit run.
//
// The file may be YAML, JSON or TOML. Column names are always given as
// values, never as map keys, because keys are case-folded on load.
//
//	data:
//	  path: ames.csv
//	  columns:
//	    - {name: neighborhood, kind: categorical}
//	roles:
//	  outcome: sale_price
//	split: {proportion: 0.75, strata: sale_price, seed: 42}
//	steps:
//	  - {type: log, columns: [lot_area], base: 10}
//	  - {type: dummy, select: all_nominal_predictors}
//	  - {type: normalize, select: all_numeric_predictors}
//	model:
//	  family: elastic_net
//	  params: {penalty: tune, mixture: 1}
//	tuning:
//	  folds: 10
//	  ranges:
//	    - {name: penalty, min: 1e-4, max: 10, levels: 30, scale: log10}
//	metrics: [rmse, rsq]
//	selection: {rule: one_se, order: [{param: penalty, desc: true}]}
//	output: {dir: out}
package config

import (
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Config is a decoded experiment file.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Roles     RolesConfig     `mapstructure:"roles"`
	Split     SplitConfig     `mapstructure:"split"`
	Steps     []StepConfig    `mapstructure:"steps" validate:"dive"`
	Model     ModelConfig     `mapstructure:"model"`
	Tuning    TuningConfig    `mapstructure:"tuning"`
	Metrics   []string        `mapstructure:"metrics"`
	Selection SelectionConfig `mapstructure:"selection"`
	Output    OutputConfig    `mapstructure:"output"`
}

type DataConfig struct {
	Path    string         `mapstructure:"path" validate:"required"`
	Columns []ColumnConfig `mapstructure:"columns" validate:"dive"`
	Missing []string       `mapstructure:"missing"`
}

// ColumnConfig declares the kind of a column; others are inferred.
type ColumnConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Kind string `mapstructure:"kind" validate:"oneof=numeric categorical"`
}

type RolesConfig struct {
	Outcome string `mapstructure:"outcome" validate:"required"`
	// Predictors defaults to every column but the outcome and Exclude.
	Predictors   []string   `mapstructure:"predictors"`
	Exclude      []string   `mapstructure:"exclude"`
	Interactions [][]string `mapstructure:"interactions" validate:"dive,len=2"`
}

type SplitConfig struct {
	Proportion float64 `mapstructure:"proportion" validate:"gt=0,lt=1"`
	Strata     string  `mapstructure:"strata"`
	Breaks     int     `mapstructure:"breaks" validate:"gte=1"`
	Seed       uint64  `mapstructure:"seed"`
}

// StepConfig is one recipe step. Step specific keys (degree, base, ...)
// are collected in Params and decoded by the step builder.
type StepConfig struct {
	Type    string         `mapstructure:"type" validate:"required,oneof=normalize range dummy log impute_mean zero_variance poly spline interact"`
	Columns []string       `mapstructure:"columns"`
	Select  string         `mapstructure:"select" validate:"omitempty,oneof=all_predictors all_numeric_predictors all_nominal_predictors"`
	Except  []string       `mapstructure:"except"`
	Params  map[string]any `mapstructure:",remain"`
}

type ModelConfig struct {
	Family string `mapstructure:"family" validate:"required"`
	// Mode defaults to the first mode the family supports.
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=regression classification"`
	// Params values are numbers, "tune" or "tune(id)".
	Params map[string]any `mapstructure:"params"`
}

type TuningConfig struct {
	Method  string        `mapstructure:"method" validate:"oneof=grid bayes"`
	Folds   int           `mapstructure:"folds" validate:"gte=2"`
	Strata  string        `mapstructure:"strata"`
	Seed    uint64        `mapstructure:"seed"`
	Workers int           `mapstructure:"workers" validate:"gte=0"`
	Trials  int           `mapstructure:"trials" validate:"gte=1"`
	Grid    []GridConfig  `mapstructure:"grid" validate:"dive"`
	Ranges  []RangeConfig `mapstructure:"ranges" validate:"dive"`
}

// GridConfig lists explicit values for one tuning parameter.
type GridConfig struct {
	Name   string    `mapstructure:"name" validate:"required"`
	Values []float64 `mapstructure:"values" validate:"required,min=1"`
}

// RangeConfig is a regular grid over [Min, Max].
type RangeConfig struct {
	Name    string  `mapstructure:"name" validate:"required"`
	Min     float64 `mapstructure:"min"`
	Max     float64 `mapstructure:"max" validate:"gtefield=Min"`
	Levels  int     `mapstructure:"levels" validate:"gte=1"`
	Scale   string  `mapstructure:"scale" validate:"omitempty,oneof=linear log10"`
	Integer bool    `mapstructure:"integer"`
}

type SelectionConfig struct {
	Rule   string        `mapstructure:"rule" validate:"oneof=best one_se"`
	Metric string        `mapstructure:"metric"`
	Order  []OrderConfig `mapstructure:"order" validate:"required_if=Rule one_se,dive"`
}

type OrderConfig struct {
	Param string `mapstructure:"param" validate:"required"`
	Desc  bool   `mapstructure:"desc"`
}

type OutputConfig struct {
	Dir   string `mapstructure:"dir" validate:"required"`
	Plots bool   `mapstructure:"plots"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("split.proportion", 0.75)
	v.SetDefault("split.breaks", 4)
	v.SetDefault("tuning.method", "grid")
	v.SetDefault("tuning.folds", 10)
	v.SetDefault("tuning.trials", 20)
	v.SetDefault("tuning.workers", 0)
	v.SetDefault("selection.rule", "best")
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.plots", true)
}

// Load reads the experiment file at path; the format follows the
// extension.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return decode(v)
}

// LoadReader reads an experiment in format ("yaml", "json", "toml").
func LoadReader(r io.Reader, format string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, errors.Wrapf(err, "read %s config", format)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. The first violation is returned as
// a ValidationError naming the field path, e.g. "tuning.folds".
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return errors.Wrap(err, "validate config")
	}
	f := fields[0]
	return errors.NewValidationError(fieldPath(f.Namespace()), "violates "+f.Tag()+" "+f.Param(), f.Value())
}

// fieldPath turns "Config.Tuning.Folds" into "tuning.folds".
func fieldPath(ns string) string {
	_, rest, _ := strings.Cut(ns, ".")
	return strings.ToLower(rest)
}
