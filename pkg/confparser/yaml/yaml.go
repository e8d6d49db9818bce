package yaml

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadConfig reads a YAML document from file and decodes it into out.
// Unknown fields are rejected.
func LoadConfig(name string, out any) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	if err := Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Unmarshal strictly decodes a YAML document into out.
func Unmarshal(data []byte, out any) error {
	return yaml.UnmarshalStrict(data, out, func(d *json.Decoder) *json.Decoder {
		d.UseNumber()
		return d
	})
}
