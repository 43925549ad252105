package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "ROWSTORE"

	cfgKeyDataDir  = "data_dir"
	cfgKeyLogLevel = "log_level"
)

// fileConfig is the layout of config.yaml.
type fileConfig struct {
	DataDir  string              `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	LogLevel string              `yaml:"log_level,omitempty" mapstructure:"log_level"`
	Tables   []types.TableConfig `yaml:"tables" mapstructure:"tables"`
}

// loadConfig reads config.yaml from configDir using Viper. ROWSTORE_LOG_LEVEL
// overrides log_level. A missing file is a user error pointing at init.
func loadConfig(configDir string) (*fileConfig, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	if err := v.BindEnv(cfgKeyLogLevel); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, userError(fmt.Errorf("no %s in %s (run 'rowstore init')", configFileExt, configDir))
		}
		return nil, userError(fmt.Errorf("read %s: %w", filepath.Join(configDir, configFileExt), err))
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, userError(fmt.Errorf("decode %s: %w", configFileExt, err))
	}
	fc.LogLevel = v.GetString(cfgKeyLogLevel)
	fc.DataDir = v.GetString(cfgKeyDataDir)

	if err := (types.Config{Tables: fc.Tables}).Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configFileExt, err)
	}
	return &fc, nil
}
