// Package cliconfig loads the optional YAML side-file the edxml-merge
// and edxml-stats front-ends accept via --config (-c), letting a checked-in
// profile supply defaults that explicit flags still override.
package cliconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads path and unmarshals it into into, which should be a
// pointer to a command-specific config struct.
func Load(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cliconfig: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("cliconfig: parsing %s: %w", path, err)
	}
	return nil
}
