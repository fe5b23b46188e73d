// Package constitution loads the ordered policy set from a YAML document.
package constitution

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odisys/ces-gate/internal/domain/ces"
)

// document is the on-disk shape of a constitution file.
type document struct {
	Policies []ces.Policy `yaml:"policies"`
}

// FileSource implements ces.Source by reading a YAML constitution file.
// Document order is preserved: it is the rule evaluation order.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Compile-time check that FileSource implements ces.Source.
var _ ces.Source = (*FileSource)(nil)

// Load reads and parses the constitution. A missing or unparseable file is an
// error; the gate service decides whether that fails open or closed.
func (s *FileSource) Load(_ context.Context) ([]ces.Policy, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read constitution %s: %w", s.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse constitution %s: %w", s.path, err)
	}

	for i, p := range doc.Policies {
		if p.ID == "" {
			return nil, fmt.Errorf("constitution %s: policy %d has no id", s.path, i)
		}
	}

	return doc.Policies, nil
}

// StaticSource implements ces.Source from an in-memory policy list. Used by
// tests and by callers that assemble the constitution programmatically.
type StaticSource struct {
	policies []ces.Policy
}

// NewStaticSource creates a StaticSource over the given policies.
func NewStaticSource(policies []ces.Policy) *StaticSource {
	return &StaticSource{policies: policies}
}

var _ ces.Source = (*StaticSource)(nil)

// Load returns a copy of the static policy list.
func (s *StaticSource) Load(_ context.Context) ([]ces.Policy, error) {
	return append([]ces.Policy{}, s.policies...), nil
}
