package strategy

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// ExportJSON serializes a Strategy for CLI/admin-surface download, the
// teacher's DeepCopy-via-JSON idiom repurposed here for external transfer
// instead of in-process cloning.
func ExportJSON(s *domain.Strategy) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("strategy: export json: %w", err)
	}
	return b, nil
}

// ImportJSON parses and validates a Strategy previously produced by
// ExportJSON (or hand-authored against the same shape).
func ImportJSON(data []byte, isKnownCondition conditionKnown) (*domain.Strategy, error) {
	var s domain.Strategy
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("strategy: import json: %w", err)
	}
	if err := Validate(&s, isKnownCondition); err != nil {
		return nil, err
	}
	return &s, nil
}

// ExportYAML serializes a Strategy in the human-editable format operators
// use to hand-author a Combination before admission.
func ExportYAML(s *domain.Strategy) ([]byte, error) {
	b, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("strategy: export yaml: %w", err)
	}
	return b, nil
}

// ImportYAML parses and validates a hand-authored or exported YAML
// Strategy document.
func ImportYAML(data []byte, isKnownCondition conditionKnown) (*domain.Strategy, error) {
	var s domain.Strategy
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("strategy: import yaml: %w", err)
	}
	if err := Validate(&s, isKnownCondition); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeepCopy clones a Strategy via a JSON marshal round trip, adequate since
// domain.Strategy holds no unexported or channel fields.
func DeepCopy(s *domain.Strategy) (*domain.Strategy, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("strategy: deep copy marshal: %w", err)
	}
	var out domain.Strategy
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("strategy: deep copy unmarshal: %w", err)
	}
	return &out, nil
}
