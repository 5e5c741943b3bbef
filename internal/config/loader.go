package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config file locations.
const (
	// GlobalConfigDir is the directory under $XDG_CONFIG_HOME (or ~/.config).
	GlobalConfigDir = "runlet"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// ProjectConfigDir is the per-project directory, relative to the cwd.
	ProjectConfigDir = ".runlet"
	// ProjectConfigFile is the per-project config file name.
	ProjectConfigFile = "config.yaml"
)

// LoadConfig layers runlet's configuration sources onto Default(), each
// overriding the one before:
//  1. Default() values
//  2. $XDG_CONFIG_HOME/runlet/config.yaml (global)
//  3. .runlet/config.yaml (project)
//  4. the file named by "config" (--config or RUNLET_CONFIG), which must exist
//  5. RUNLET_* environment variables and flags bound to v
//
// The result is normalized and validated.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaults, err := settingsMap(cfg)
	if err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	for _, layer := range fileLayers(v.GetString("config")) {
		if err := mergeFile(v, layer); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg, decodeHooks()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileLayer is one config file in precedence order.
type fileLayer struct {
	path     string
	required bool
}

func fileLayers(explicit string) []fileLayer {
	var layers []fileLayer
	if p := globalConfigPath(); p != "" {
		layers = append(layers, fileLayer{path: p})
	}
	if p := projectConfigPath(); p != "" {
		layers = append(layers, fileLayer{path: p})
	}
	if explicit != "" {
		layers = append(layers, fileLayer{path: explicit, required: true})
	}
	return layers
}

// globalConfigPath returns the global config file path if it exists.
func globalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}

	path := filepath.Join(configDir, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// projectConfigPath returns the project config file path if it exists.
func projectConfigPath() string {
	path := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// mergeFile reads one YAML layer into v. An optional layer that vanished
// since it was found is skipped.
func mergeFile(v *viper.Viper, layer fileLayer) error {
	data, err := os.ReadFile(layer.path)
	if err != nil {
		if os.IsNotExist(err) && !layer.required {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	fileViper := viper.New()
	fileViper.SetConfigType("yaml")
	if err := fileViper.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("read %s: %w", layer.path, err)
	}
	return v.MergeConfigMap(fileViper.AllSettings())
}

// decodeHooks understands the value shapes runlet accepts from files, env
// and flags: bare numbers and duration strings for poll_interval, and
// directory lists for search_path.
func decodeHooks() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		millisecondsHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		dirListHook(),
	))
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook reads a bare number as milliseconds, so
// "poll_interval: 50" means 50ms rather than 50ns.
func millisecondsHook() mapstructure.DecodeHookFuncType {
	return func(_, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch n := data.(type) {
		case int:
			return time.Duration(n) * time.Millisecond, nil
		case int64:
			return time.Duration(n) * time.Millisecond, nil
		case float64:
			return time.Duration(n * float64(time.Millisecond)), nil
		}
		return data, nil
	}
}

// dirListHook splits a string into directories on commas and on the OS
// list separator, so both "/a,/b" and a copied $PATH decode.
func dirListHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		return SplitDirList(data.(string)), nil
	}
}

// SplitDirList splits value on commas and the OS list separator, trimming
// blanks and dropping empty entries.
func SplitDirList(value string) []string {
	dirs := []string{}
	for _, dir := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	}) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// settingsMap flattens cfg into the nested map viper merges as defaults.
// Durations become strings so they read back like a YAML file would.
func settingsMap(cfg *Config) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &result,
		DecodeHook: func(from, _ reflect.Type, data interface{}) (interface{}, error) {
			if from == durationType {
				return data.(time.Duration).String(), nil
			}
			return data, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return result, nil
}
