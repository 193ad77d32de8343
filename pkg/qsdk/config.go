package qsdk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BaseURL    string `mapstructure:"baseUrl"`
	APIVersion string `mapstructure:"apiVersion"`
	// Timeout bounds each gateway request, e.g. "30s".
	Timeout time.Duration `mapstructure:"timeout"`

	// Program defaults used by `qgate run`.
	Program ProgramConfig `mapstructure:"program"`

	v *viper.Viper // instance-specific viper
}

// ProgramConfig mirrors the fields of a program submission.
type ProgramConfig struct {
	Title        string   `mapstructure:"title"`
	Entrypoint   string   `mapstructure:"entrypoint"`
	Arguments    string   `mapstructure:"arguments"`
	Dependencies []string `mapstructure:"dependencies"`
	// Dir is archived and uploaded. Defaults to the current directory.
	Dir string `mapstructure:"dir"`
}

const (
	EnvPrefix  = "QGATE"
	ConfigName = "qgate"
	ConfigRoot = ".qgate"

	BaseUrlKey    = "baseUrl"
	ApiVersionKey = "apiVersion"
	TimeoutKey    = "timeout"
)

// LoadConfig creates a new Config instance with its own viper
// This is the only way to load config (no global state)
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		// Load project config (TRACKED) - qgate.yaml in current directory
		for _, name := range []string{"qgate.yaml", "qgate.yml", ".qgate.yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err == nil {
					break
				}
			}
		}

		// Merge local overrides (UNTRACKED) - .qgate/config.yaml
		localConfigPath := filepath.Join(ConfigRoot, "config.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging local config: %w", err)
			}
		}
	}

	// Set defaults
	setDefaults(v)

	// Unmarshal into Config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.v = v
	return &cfg, nil
}

// Get returns a value from the underlying viper instance
// Useful for CLI flag binding and dynamic config access
func (c *Config) Get(key string) interface{} {
	if c.v == nil {
		return nil
	}
	return c.v.Get(key)
}

// GetString returns a string value from the underlying viper instance
func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// Viper returns the underlying viper instance
// Useful for advanced config operations
func (c *Config) Viper() *viper.Viper {
	return c.v
}

func setDefaults(v *viper.Viper) {
	if !v.IsSet(BaseUrlKey) {
		v.SetDefault(BaseUrlKey, "http://localhost:3000")
	} else {
		normalized := strings.TrimRight(v.GetString(BaseUrlKey), "/")
		v.Set(BaseUrlKey, normalized)
	}

	if !v.IsSet(ApiVersionKey) {
		v.SetDefault(ApiVersionKey, "v1")
	}

	v.SetDefault(TimeoutKey, "60s")
	v.SetDefault("program.dir", ".")
}

// ConfigFileUsed returns the config file that was used (if any)
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}
