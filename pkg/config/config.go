// Package config loads pipeskills settings from the config file, the
// PIPESKILLS_ environment and bound command flags through viper.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PIPESKILLS_LOG_LEVEL.
const EnvPrefix = "PIPESKILLS"

// Config is the full set of settings.
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Skills    SkillsConfig    `mapstructure:"skills"`
	Leak      LeakConfig      `mapstructure:"leak"`
	WorkOrder WorkOrderConfig `mapstructure:"workorder"`
	Asset     AssetConfig     `mapstructure:"asset"`
}

// CatalogConfig locates the catalog document.
type CatalogConfig struct {
	Path   string `mapstructure:"path"`
	Strict bool   `mapstructure:"strict"`
}

// SkillsConfig lists the skill package roots, searched in order.
type SkillsConfig struct {
	Dirs []string `mapstructure:"dirs"`
}

// LeakConfig tunes the leak analyzer.
type LeakConfig struct {
	MNFStartHour      int     `mapstructure:"mnf_start_hour"`
	MNFEndHour        int     `mapstructure:"mnf_end_hour"`
	PressureThreshold float64 `mapstructure:"pressure_threshold"`
}

// WorkOrderConfig tunes work order statistics.
type WorkOrderConfig struct {
	OverdueHours float64 `mapstructure:"overdue_hours"`
	TrendDays    int     `mapstructure:"trend_days"`
}

// AssetConfig tunes asset ledger statistics.
type AssetConfig struct {
	OverdueDays       int     `mapstructure:"overdue_days"`
	ReplacementMinAge float64 `mapstructure:"replacement_min_age"`
}

var defaults = map[string]interface{}{
	"log_level":                 "info",
	"log_format":                "fmt",
	"catalog.path":              "README.md",
	"catalog.strict":            false,
	"skills.dirs":               []string{"./skills"},
	"leak.mnf_start_hour":       2,
	"leak.mnf_end_hour":         4,
	"leak.pressure_threshold":   0.15,
	"workorder.overdue_hours":   48,
	"workorder.trend_days":      30,
	"asset.overdue_days":        30,
	"asset.replacement_min_age": 25,
}

// InitConfig registers defaults and environment lookup on the global viper
// instance and reads config.yaml from $HOME/.pipeskills or the working
// directory when present.
func InitConfig() error {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.pipeskills")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// GetConfigFromViper unmarshals the global viper settings and validates them.
func GetConfigFromViper() (Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal configuration")
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			result = multierror.Append(result, fmt.Errorf(format, args...))
		}
	}

	check(c.Leak.MNFStartHour >= 0 && c.Leak.MNFStartHour < 24, "leak.mnf_start_hour must be within 0-23, got %d", c.Leak.MNFStartHour)
	check(c.Leak.MNFEndHour > 0 && c.Leak.MNFEndHour <= 24, "leak.mnf_end_hour must be within 1-24, got %d", c.Leak.MNFEndHour)
	check(c.Leak.MNFStartHour < c.Leak.MNFEndHour, "leak.mnf_start_hour (%d) must precede leak.mnf_end_hour (%d)", c.Leak.MNFStartHour, c.Leak.MNFEndHour)
	check(c.Leak.PressureThreshold > 0, "leak.pressure_threshold must be positive, got %v", c.Leak.PressureThreshold)
	check(c.WorkOrder.OverdueHours >= 0, "workorder.overdue_hours cannot be negative, got %v", c.WorkOrder.OverdueHours)
	check(c.WorkOrder.TrendDays > 0, "workorder.trend_days must be positive, got %d", c.WorkOrder.TrendDays)
	check(c.Asset.OverdueDays >= 0, "asset.overdue_days cannot be negative, got %d", c.Asset.OverdueDays)
	check(c.Asset.ReplacementMinAge >= 0, "asset.replacement_min_age cannot be negative, got %v", c.Asset.ReplacementMinAge)

	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return "invalid configuration: " + strings.Join(msgs, "; ")
	}
	return result
}
