package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/mnqlab/fractal/internal/core"
)

type Config struct {
	Data     DataConfig                `mapstructure:"data"`
	Engine   EngineConfig              `mapstructure:"engine"`
	Position PositionConfig            `mapstructure:"position"`
	Breaker  BreakerConfig             `mapstructure:"breaker"`
	Session  SessionConfig             `mapstructure:"session"`
	Strategy StrategySelection         `mapstructure:"strategy"`
	Grid     GridConfig                `mapstructure:"grid"`
	Archive  ArchiveConfig             `mapstructure:"archive"`
	Params   map[string]StrategyConfig `mapstructure:"params"`
}

// DataConfig locates the bar feed.
type DataConfig struct {
	Path       string  `mapstructure:"path"`
	Timezone   string  `mapstructure:"timezone"`
	PointValue float64 `mapstructure:"point_value"`
}

// EngineConfig holds the indicator and swing knobs.
type EngineConfig struct {
	SwingStrength   int     `mapstructure:"swing_strength"`
	ATRPeriod       int     `mapstructure:"atr_period"`
	EMAPeriod       int     `mapstructure:"ema_period"`
	ZScorePeriod    int     `mapstructure:"zscore_period"`
	EMAConfirmation bool    `mapstructure:"ema_confirmation"`
	Slippage        float64 `mapstructure:"slippage"`
	Commission      float64 `mapstructure:"commission"`

	ChopWindow           int     `mapstructure:"chop_window"`
	ChopAmpThreshold     float64 `mapstructure:"chop_amp_threshold"`
	ChopThreshold        float64 `mapstructure:"chop_threshold"`
	ChopEnergyPercentile float64 `mapstructure:"chop_energy_percentile"`
}

// PositionConfig holds the position-management knobs.
type PositionConfig struct {
	GraceBars      int     `mapstructure:"grace_bars"`
	MaxHold        int     `mapstructure:"max_hold"`
	TrailBufferATR float64 `mapstructure:"trail_buffer_atr"`
	UseBreakeven   bool    `mapstructure:"use_breakeven"`
	StopFill       string  `mapstructure:"stop_fill"` // "stop" or "close"
}

// BreakerConfig holds the circuit-breaker limits. Loss limits are negative
// numbers; zero disables a gate.
type BreakerConfig struct {
	DailyLossLimit  float64 `mapstructure:"daily_loss_limit"`
	WeeklyLossLimit float64 `mapstructure:"weekly_loss_limit"`
	MaxConsecLosses int     `mapstructure:"max_consec_losses"`
}

// SessionConfig is the RTH window in fractional hours.
type SessionConfig struct {
	Start float64 `mapstructure:"start"`
	End   float64 `mapstructure:"end"`
}

// StrategySelection picks the generator variant.
type StrategySelection struct {
	Name string `mapstructure:"name"`
}

// StrategyConfig holds the parameter bag for one generator.
type StrategyConfig struct {
	Params map[string]any `mapstructure:"params"`
}

// GridConfig enables the probability-cell entry filter.
type GridConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Mode    string   `mapstructure:"mode"` // "fine" or "ultra"
	Cells   []string `mapstructure:"cells"`
}

// ArchiveConfig selects the run-artifact backend.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds S3 connection settings for the archive backend.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with the parameters validated in research.
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Timezone:   "America/Chicago",
			PointValue: 1.0,
		},
		Engine: EngineConfig{
			SwingStrength:        2,
			ATRPeriod:            14,
			EMAPeriod:            21,
			ZScorePeriod:         20,
			Slippage:             2.0,
			Commission:           2.0,
			ChopWindow:           20,
			ChopAmpThreshold:     0.6,
			ChopThreshold:        0.3,
			ChopEnergyPercentile: 50,
		},
		Position: PositionConfig{
			GraceBars:      7,
			MaxHold:        90,
			TrailBufferATR: 0.8,
			UseBreakeven:   true,
			StopFill:       "close",
		},
		Breaker: BreakerConfig{
			DailyLossLimit:  -200,
			MaxConsecLosses: 3,
		},
		Session: SessionConfig{Start: 8.5, End: 15.0},
		Strategy: StrategySelection{
			Name: "pullback",
		},
		Grid: GridConfig{Mode: "fine"},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "results",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.SwingStrength <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("swing_strength must be positive, got %d", c.Engine.SwingStrength))
	}
	if c.Engine.ATRPeriod <= 0 || c.Engine.EMAPeriod <= 0 || c.Engine.ZScorePeriod <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("indicator periods must be positive"))
	}
	if c.Engine.Slippage < 0 || c.Engine.Commission < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage and commission cannot be negative"))
	}
	if c.Session.End <= c.Session.Start {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session end %v must be after start %v", c.Session.End, c.Session.Start))
	}
	if c.Position.GraceBars < 0 || c.Position.MaxHold < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("grace_bars and max_hold cannot be negative"))
	}
	if sf := c.Position.StopFill; sf != "" && sf != "stop" && sf != "close" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_fill must be \"stop\" or \"close\", got %q", sf))
	}
	if c.Breaker.DailyLossLimit > 0 || c.Breaker.WeeklyLossLimit > 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("loss limits are negative numbers"))
	}
	if c.Breaker.MaxConsecLosses < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_consec_losses cannot be negative"))
	}
	if c.Strategy.Name == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("no strategy selected"))
	}
	if m := c.Grid.Mode; m != "" && m != "fine" && m != "ultra" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("grid mode must be \"fine\" or \"ultra\", got %q", m))
	}
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required for localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("s3 bucket required"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Archive.Type))
		}
	}
	return nil
}

// StrategyParams returns the parameter bag for the named generator.
func (c *Config) StrategyParams(name string) map[string]any {
	if sc, ok := c.Params[name]; ok {
		return sc.Params
	}
	return nil
}
