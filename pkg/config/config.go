// Package config loads per-archive run configuration from a yaml file
// next to the target, so recurring runs do not need the full flag set.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type RunConfig struct {
	Catalogs              []string `yaml:"catalogs,omitempty"`
	ChecksumManifest      string   `yaml:"checksum_manifest,omitempty"`
	SkipProductValidation bool     `yaml:"skip_product_validation,omitempty"`
	NoDataCheck           bool     `yaml:"no_data_check,omitempty"`
	ForceSchemaValidation bool     `yaml:"force_schema_validation,omitempty"`
	ExpandedSystemIDs     bool     `yaml:"expanded_system_ids,omitempty"`
	FileFilters           []string `yaml:"file_filters,omitempty"`
}

const ConfigFileName = "labelverify.yaml"

func Load(sourcePath string) (*RunConfig, error) {
	configPath := filepath.Join(sourcePath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
