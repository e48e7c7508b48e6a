package seedfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the service seed file
type Loader struct {
	filePath string
}

// NewLoader creates a new seed file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the seed file. Entries without a subdomain are
// rejected rather than silently skipped.
func (l *Loader) Load() (SeedConfig, error) {
	var config SeedConfig

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return config, fmt.Errorf("failed to read seed file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	for i, seed := range config.Services {
		if seed.Subdomain == "" {
			return config, fmt.Errorf("seed entry %d has no subdomain", i)
		}
	}
	return config, nil
}
