package config

import (
	"os"
	"path/filepath"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
	// GlobalConfigDir is the directory for the per-user config.
	GlobalConfigDir = ".config/aurora"
	// EnvFileName is the dotenv file picked up at startup.
	EnvFileName = ".env"
)

// Load reads the config file at path (optional) and resolves it against the
// process environment. An empty path means environment-only configuration.
func Load(path string) (*Config, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Resolve(file, Environ())
}

// ReadFile decodes a YAML config file into a nested map. Empty path yields nil.
func ReadFile(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Run 'aurora init' to create one, or pass --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return v.AllSettings(), nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. $AURORA_CONFIG
// 3. config.yaml in the current directory
// 4. ~/.config/aurora/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(EnvPrefix + "CONFIG")
	}

	if explicit != "" {
		explicit = ExpandTilde(explicit)
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, GlobalConfigDir, ConfigFileName)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// LoadEnvFile loads the first dotenv file found into the process environment.
// Search order: explicit path, $AURORA_ENV_FILE, ./.env, ~/.env.
// Variables already set in the environment are never overridden.
// Returns the path that was loaded, or empty string if none exists.
func LoadEnvFile(explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, ExpandTilde(explicit))
	}
	if p := os.Getenv(EnvPrefix + "ENV_FILE"); p != "" {
		candidates = append(candidates, ExpandTilde(p))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, EnvFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, EnvFileName))
	}

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := gotenv.Load(path); err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to parse env file: "+path,
				"Each line should look like KEY=value")
		}
		return path, nil
	}
	return "", nil
}
