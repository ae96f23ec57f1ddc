package pattern

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadFile reads a pattern table definition from a YAML file.
func LoadFile(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("failed to read pattern file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML pattern table definition.
func Parse(raw []byte) (Data, error) {
	var data Data
	if err := yaml.UnmarshalStrict(raw, &data); err != nil {
		return Data{}, fmt.Errorf("failed to parse pattern data: %w", err)
	}

	for _, e := range data.Ratings {
		if e.Merchant == "" {
			return Data{}, fmt.Errorf("pattern entry with empty merchant")
		}
		if e.Rating < 0 || e.Rating > 100 {
			return Data{}, fmt.Errorf("pattern rating %d for %s/%s outside [0,100]", e.Rating, e.Merchant, e.Location)
		}
	}
	return data, nil
}
