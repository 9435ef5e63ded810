// Package config reads the proxy configuration from YAML and JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/imdario/mergo"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

// Unmarshal decodes a raw config map into v. Durations and sizes can be given as strings like "5s" or "1MB".
func Unmarshal(cfg any, v any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		Result: v,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(cfg)
}

// Read reads all config files at the given paths into one map. A path can be a file or a directory.
// Values of later files override the values of earlier ones.
func Read(paths ...string) (map[string]any, error) {
	cfg := map[string]any{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if info.IsDir() {
			err = readConfigsFromDir(path, &cfg)
		} else {
			err = mergeConfigFile(path, &cfg)
		}

		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func readConfigsFromDir(dir string, v *map[string]any) error {
	readConfig := func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		return mergeConfigFile(path, v)
	}

	return filepath.Walk(dir, readConfig)
}

func mergeConfigFile(filename string, v *map[string]any) error {
	cfgData := map[string]any{}
	if err := ReadConfigFile(filename, &cfgData); err != nil {
		return fmt.Errorf("could not read %s; %w", filename, err)
	}

	return mergo.Merge(v, cfgData, mergo.WithOverride)
}

func ReadConfigFile(filename string, v any) error {
	bb, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	switch filepath.Ext(filename) {
	case ".json":
		return json.Unmarshal(bb, v)
	case ".yml", ".yaml":
		return yaml.Unmarshal(bb, v)
	default:
		return ErrUnsupportedFileType
	}
}
