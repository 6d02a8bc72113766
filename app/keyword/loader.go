package keyword

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crawlai/crawl-engine/app/apperr"
)

type fileFormat struct {
	Groups []Group `yaml:"groups"`
}

// LoadFile reads keyword groups from a YAML file. A missing file yields
// DefaultGroups so a fresh install scores against something.
func LoadFile(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("Keyword file not found, using default groups", "path", path)
		return DefaultGroups(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword file: %w", err)
	}

	return parse(path, data)
}

// Parse decodes keyword groups. Malformed YAML is an InvalidKeywordGroup
// ConfigError, the same as a group that fails validation.
func Parse(data []byte) ([]Group, error) {
	return parse("keywords", data)
}

func parse(name string, data []byte) ([]Group, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &apperr.ConfigError{
			Kind: apperr.InvalidKeywordGroup,
			Name: name,
			Err:  fmt.Errorf("failed to parse keyword YAML: %w", err),
		}
	}
	return f.Groups, nil
}

func Marshal(groups []Group) ([]byte, error) {
	return yaml.Marshal(fileFormat{Groups: groups})
}
