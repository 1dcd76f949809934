// Package conf loads the mongopipe configuration and the YAML pipeline
// definition files.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dosco/mongopipe/core"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding config values,
// eg. MP_DATABASE or MP_LOG_LEVEL.
const EnvPrefix = "MP"

// ReadInConfig function reads in the config file for the environment specified in the GO_ENV
// environment variable. An empty path reads ./config/<env>.yml
func ReadInConfig(configFile string) (*core.Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*core.Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*core.Config, error) {
	if configFile == "" {
		configFile = filepath.Join("config", GetConfigName())
	}

	vi := newViper(filepath.Dir(configFile), filepath.Base(configFile))
	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("conf: %w", err)
	}
	return decode(vi)
}

// NewConfig function creates a new configuration from the provided config string
func NewConfig(config, format string) (*core.Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, fmt.Errorf("conf: %w", err)
	}
	return decode(vi)
}

func decode(vi *viper.Viper) (*core.Config, error) {
	c := &core.Config{}
	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("conf: failed to decode config, %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// newViperWithDefaults returns a new viper instance with the default settings
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("connection_string", "mongodb://localhost:27017")
	vi.SetDefault("database", "")

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "plain")

	vi.SetDefault("entity_cache_size", 0)
	vi.SetDefault("disable_entity_cache", false)
	vi.SetDefault("date_time_as_string", false)
	vi.SetDefault("instant_as_nanos", false)

	vi.SetDefault("read_preference", core.ReadPrimary)
	vi.SetDefault("allow_disk_use", false)
	vi.SetDefault("batch_size", 0)
	vi.SetDefault("connect_retries", 3)

	vi.SetEnvPrefix(EnvPrefix)
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	return vi
}

// newViper returns a new viper instance with the default settings
func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" || configPath == "." {
		vi.AddConfigPath("./config")
	}
	vi.AddConfigPath(configPath)

	return vi
}

// GetConfigName returns the name of the configuration
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
