package policy

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	ptypes "github.com/eliran89c/tag-janitor/pkg/policy/types"
	"gopkg.in/yaml.v3"
)

// DefaultParser implements the standard parser for janitor policies
type DefaultParser struct{}

// NewParser creates a new DefaultParser instance
func NewParser() *DefaultParser {
	return &DefaultParser{}
}

// ParseFile parses a policy file from the specified path
func (p *DefaultParser) ParseFile(path string) (*ptypes.Plan, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file)
}

// ParseBytes parses a policy from a byte slice
func (p *DefaultParser) ParseBytes(data []byte) (*ptypes.Plan, error) {
	return p.ParseReader(bytes.NewReader(data))
}

// ParseReader parses a policy from an io.Reader
func (p *DefaultParser) ParseReader(reader io.Reader) (*ptypes.Plan, error) {
	var policy ptypes.Policy

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&policy); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	return p.ParsePolicy(&policy)
}

// ParsePolicy validates and processes a Policy into a Plan
func (p *DefaultParser) ParsePolicy(policy *ptypes.Policy) (*ptypes.Plan, error) {
	if err := ValidatePolicy(policy); err != nil {
		return nil, fmt.Errorf("failed to validate policy: %w", err)
	}

	return p.ProcessPolicy(policy), nil
}

// ProcessPolicy converts a Policy into a Plan with one definition per resource type.
// Definitions are ordered by service and resource type.
func (p *DefaultParser) ProcessPolicy(config *ptypes.Policy) *ptypes.Plan {
	plan := &ptypes.Plan{
		CleanupTag:  config.CleanupTag,
		Definitions: make([]*ptypes.ResourceDefinition, 0),
	}

	for service, resources := range config.Resources {
		for resourceType, resourceConfig := range resources {
			definition := &ptypes.ResourceDefinition{
				Service:      service,
				ResourceType: resourceType,
				CleanupTag:   config.CleanupTag,
			}

			if resourceConfig != nil && resourceConfig.CleanupTag != "" {
				definition.CleanupTag = resourceConfig.CleanupTag
			}

			plan.Definitions = append(plan.Definitions, definition)
		}
	}

	sort.Slice(plan.Definitions, func(i, j int) bool {
		a, b := plan.Definitions[i], plan.Definitions[j]
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		return a.ResourceType < b.ResourceType
	})

	return plan
}
