package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything the treadmill console needs at startup. Values
// come from flags, environment (TREADMILL_ prefix), and an optional
// treadmill.yaml, in that order of precedence.
type Config struct {
	DeviceName  string        `mapstructure:"device-name"`
	WorkoutsDir string        `mapstructure:"workouts-dir"`
	LogFile     string        `mapstructure:"log-file"`
	ScanTimeout time.Duration `mapstructure:"scan-timeout"`
	Mock        bool          `mapstructure:"mock"`
}

const (
	defaultDeviceName  = "HORIZON_7.0AT"
	defaultWorkoutsDir = "workouts"
	defaultLogFile     = "treadmill-console.log"
	defaultScanTimeout = 10 * time.Second
)

// Load parses args (excluding the program name) and merges flag, env, and
// file settings into a Config.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("treadmill-console", pflag.ContinueOnError)
	flags.String("device-name", defaultDeviceName, "advertised name of the treadmill to connect to")
	flags.String("workouts-dir", defaultWorkoutsDir, "directory of workout JSON files")
	flags.String("log-file", defaultLogFile, "path of the rotating log file")
	flags.Duration("scan-timeout", defaultScanTimeout, "how long a scanned device stays listed")
	flags.Bool("mock", false, "run against a simulated treadmill instead of BLE hardware")
	flags.String("config", "", "explicit config file path")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix("TREADMILL")
	// Settings are dash-keyed; env vars use underscores (TREADMILL_DEVICE_NAME).
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("treadmill")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing file is fine; a malformed one is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.ScanTimeout <= 0 {
		return nil, fmt.Errorf("scan-timeout must be positive, got %v", cfg.ScanTimeout)
	}
	return &cfg, nil
}
