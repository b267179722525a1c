package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// IsUnresolved reports whether s still carries a template placeholder,
// i.e. contains "${" or starts with "$". Such values count as absent.
func IsUnresolved(s string) bool {
	return strings.Contains(s, "${") || strings.HasPrefix(s, "$")
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandEnv substitutes ${NAME} and $NAME references in s from env.
// References to names missing from env are left untouched so that
// IsUnresolved still flags them; a lone "$" is kept literally.
func ExpandEnv(s string, env map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefPattern.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if v, ok := env[name]; ok {
			return v
		}
		return ref
	})
}

// expandTree applies ExpandEnv to every string leaf of a decoded config file.
func expandTree(v interface{}, env map[string]string) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = expandTree(val, env)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = expandTree(val, env)
		}
		return out
	case string:
		return ExpandEnv(t, env)
	default:
		return v
	}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}
