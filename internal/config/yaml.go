package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ApplyYAMLOverrides reads a local development override file (YAML map of
// environment-variable name to value) and applies any keys not already
// set in the process environment. It is a no-op if path does not exist,
// so production deployments that rely solely on the environment are
// unaffected. Values already present in the environment always win.
func ApplyYAMLOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return err
	}

	for k, v := range overrides {
		if _, set := os.LookupEnv(k); !set {
			_ = os.Setenv(k, v)
		}
	}
	return nil
}
