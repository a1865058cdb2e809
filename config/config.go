// Package config loads the host harness configuration: worker count,
// seed, simulation horizon and demo-model hyper-parameters. The file is a
// kind/def envelope so unrelated tool configs can share a directory
// without colliding.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type outerConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// SimConfig holds the harness parameters around one solver run. It is not
// the solver's input; the harness turns it into one.
type SimConfig struct {
	// Workers is the solver thread count; zero lets the solver pick.
	Workers int `yaml:"workers"`
	// Seed pins the master RNG stream; nil falls back to the wall clock.
	Seed *int64 `yaml:"seed"`
	// Days is the simulation horizon; the sample grid is 0..Days.
	Days int `yaml:"days"`
	// Nodes is the demo metapopulation size.
	Nodes int `yaml:"nodes"`
	// HyperParams is a key-val list of model parameters (rates etc).
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// RunDeadline bounds the wall-clock run time, e.g. "2m". Empty means
	// unbounded.
	RunDeadline string `yaml:"rundeadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// GetHyperParamOrDefault returns the named parameter or the default when
// the config omits it.
func (cfg *SimConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithRunDeadline returns a context bounded by the configured deadline,
// if one is set.
func (cfg *SimConfig) WithRunDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if cfg.RunDeadline == "" {
		inner, cancel := context.WithCancel(ctx)
		return inner, cancel, nil
	}
	duration, err := time.ParseDuration(cfg.RunDeadline)
	if err != nil {
		return nil, nil, fmt.Errorf("run deadline: %w", err)
	}
	inner, cancel := context.WithTimeout(ctx, duration)
	return inner, cancel, nil
}

// FromYaml reads a SimConfig from the kind/def envelope at path.
func FromYaml(path string) (*SimConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outer := &outerConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, err
	}

	spec, err := yaml.Marshal(outer.Def)
	if err != nil {
		return nil, err
	}
	inner := &SimConfig{}
	if err = yaml.Unmarshal(spec, inner); err != nil {
		return nil, err
	}
	return inner, nil
}
