package config

import (
	"os"
	"path/filepath"

	"github.com/atlas-iot/aurora/internal/errors"
	"gopkg.in/yaml.v3"
)

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't encode config as YAML",
			"This is unexpected - please report it")
	}
	return data, nil
}

// Write saves cfg to path, creating parent directories. The file is written
// 0600 because it may contain broker credentials.
func Write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create config directory",
			"Check permissions on "+filepath.Dir(path))
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write config file: "+path,
			"Check you have write access to that location")
	}
	return nil
}
