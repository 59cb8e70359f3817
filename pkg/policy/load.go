package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML policy file layered over Default and validates the
// result. A category present in the file replaces the built-in entry of the
// same name; table-wide settings override individually.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %q: %w", path, err)
	}
	return t, nil
}

// Parse decodes YAML policy data over Default and validates it.
func Parse(data []byte) (*Table, error) {
	t := Default()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	t.finalize()
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// New validates t, derives its buckets and returns it. It is the entry point
// for tables built in code.
func New(t *Table) (*Table, error) {
	t.finalize()
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Marshal renders t as YAML.
func Marshal(t *Table) ([]byte, error) {
	return yaml.Marshal(t)
}
