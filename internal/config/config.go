// Package config loads decoder and encoder parameters from an optional YAML
// file via viper, overridable by pflag command-line flags.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds every setting a decode run needs.
type Config struct {
	Constraints []int     `mapstructure:"constraints"`
	Genpolys    [][]int64 `mapstructure:"genpolys"`

	Decoder string `mapstructure:"decoder"` // "fano" or "stack"

	InitThreshold      float64 `mapstructure:"init_threshold"`
	DeltaThreshold     float64 `mapstructure:"delta_threshold"`
	DeltaInitThreshold float64 `mapstructure:"delta_init_threshold"`
	CacheSize          uint64  `mapstructure:"cache_size"`

	UseMetricLimit bool    `mapstructure:"use_metric_limit"`
	MetricLimit    float64 `mapstructure:"metric_limit"`
	UseNodeLimit   bool    `mapstructure:"use_node_limit"`
	NodeLimit      uint64  `mapstructure:"node_limit"`

	UseGiveupThreshold bool    `mapstructure:"use_giveup_threshold"`
	GiveupThreshold    float64 `mapstructure:"giveup_threshold"`

	TailZeros bool    `mapstructure:"tail_zeros"`
	EdgeBias  float64 `mapstructure:"edge_bias"`
	Verbosity int     `mapstructure:"verbosity"`

	DotPath    string `mapstructure:"dot_path"`
	HistoryDB  string `mapstructure:"history_db"`
	MatrixFile string `mapstructure:"matrix_file"`
}

// ErrConfiguration wraps every failure reported by Load and Validate: a
// malformed file, a value that cannot be decoded, or a semantically invalid
// combination.
var ErrConfiguration = fmt.Errorf("config: invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("decoder", "fano")
	v.SetDefault("init_threshold", 0.0)
	v.SetDefault("delta_threshold", 1.0)
	v.SetDefault("delta_init_threshold", 0.0)
	v.SetDefault("cache_size", 0)
	v.SetDefault("tail_zeros", true)
	v.SetDefault("edge_bias", 0.0)
	v.SetDefault("verbosity", 0)
}

// Load reads configFile (if non-empty) via viper and applies environment
// overrides under the CCSOFT_ prefix. The caller (cmd/ccsoft) is expected to
// overlay any explicitly-set command-line flags onto the result and then
// call Validate before using it.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ccsoft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ccsoft")
	}

	v.SetEnvPrefix("CCSOFT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file is fine, defaults and flags still apply
		} else if os.IsNotExist(err) {
			// an explicitly named file that does not exist is also fine
		} else {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return &cfg, nil
}

// Validate checks that cfg (after YAML, env and flag overrides have all
// been applied) is internally consistent.
func Validate(cfg *Config) error {
	if len(cfg.Constraints) == 0 {
		return fmt.Errorf("%w: at least one --constraint is required", ErrConfiguration)
	}
	if len(cfg.Genpolys) != len(cfg.Constraints) {
		return fmt.Errorf("%w: %d constraints but %d --genpoly entries", ErrConfiguration, len(cfg.Constraints), len(cfg.Genpolys))
	}
	if cfg.Decoder != "fano" && cfg.Decoder != "stack" {
		return fmt.Errorf("%w: --decoder must be \"fano\" or \"stack\", got %q", ErrConfiguration, cfg.Decoder)
	}
	return nil
}
