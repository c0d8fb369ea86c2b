package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"streamhub/internal/manager"
)

// Bootstrap declares consumers to create when the service starts.
type Bootstrap struct {
	Consumers []manager.CreateSpec `yaml:"consumers"`
}

func LoadBootstrap(path string) (*Bootstrap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bootstrap
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", path, err)
	}
	return &b, nil
}
