package listing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrEmptyDescription is returned when there is nothing to decode.
var ErrEmptyDescription = errors.New("empty description")

// Decode parses data into the generic value tree.Build consumes. JSON may
// carry comments and trailing commas. An unknown format is tried as JSON
// first, then as YAML.
func Decode(data []byte, format Format) (any, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDescription
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	default:
		desc, jsonErr := decodeJSON(data)
		if jsonErr == nil {
			return desc, nil
		}
		desc, yamlErr := decodeYAML(data)
		if yamlErr == nil {
			return desc, nil
		}
		return nil, fmt.Errorf("neither JSON (%v) nor YAML (%v)", jsonErr, yamlErr)
	}
}

func decodeJSON(data []byte) (any, error) {
	var desc any
	if err := json.Unmarshal(jsonc.ToJSON(data), &desc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return desc, nil
}

func decodeYAML(data []byte) (any, error) {
	var desc any
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if desc == nil {
		return nil, ErrEmptyDescription
	}
	return desc, nil
}
