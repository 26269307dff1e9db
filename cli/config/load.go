package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a suite file, expands environment references, decodes it
// strictly and validates the result. Unknown keys are rejected.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("suite file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read suite file %q: %w", path, err)
	}

	s, err := Parse([]byte(ExpandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Parse decodes and validates an already expanded suite document. An empty
// document yields an empty suite, which fails validation.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
