package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
)

const maxDescriptionLen = 512

// ToolSchema is the JSON-Schema view of a single descriptor, optionally
// carrying enrichment. Structural facts (types, required) always come from
// the descriptor; enrichment may only add.
type ToolSchema struct {
	Name        string
	Description string
	Input       *jsonschema.Schema
	Examples    []map[string]any
}

// FromDescriptor derives the structural schema for a descriptor. Parameters
// without type information degrade to untyped (any) properties.
func FromDescriptor(d *catalog.Descriptor) *ToolSchema {
	properties := make(map[string]*jsonschema.Schema, len(d.Params))
	var required []string

	for _, param := range d.Params {
		prop := &jsonschema.Schema{}
		if param.Type != "" {
			prop.Type = param.Type
		}
		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}

	input := &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
	}
	if len(required) > 0 {
		input.Required = required
	}

	return &ToolSchema{
		Name:        d.Name,
		Description: CleanDescription(d.Description),
		Input:       input,
	}
}

// RawJSON marshals the input schema for wire registration. Enrichment
// examples ride along under the schema's examples keyword.
func (s *ToolSchema) RawJSON() (json.RawMessage, error) {
	input := s.Input
	if len(s.Examples) > 0 {
		clone := *s.Input
		clone.Examples = make([]any, len(s.Examples))
		for i, example := range s.Examples {
			clone.Examples[i] = example
		}
		input = &clone
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", s.Name, err)
	}
	return data, nil
}

// Patch is the additive output of an enrichment collaborator.
type Patch struct {
	Description       string            `json:"description,omitempty"`
	ParamDescriptions map[string]string `json:"param_descriptions,omitempty"`
	Enums             map[string][]any  `json:"enums,omitempty"`
	Examples          []map[string]any  `json:"examples,omitempty"`
}

// Merge applies a patch additively. Type and required constraints are never
// touched; property descriptions and enums are only set where absent, so a
// patch can never contradict the structural schema.
func (s *ToolSchema) Merge(p *Patch) {
	if p == nil {
		return
	}
	if p.Description != "" {
		s.Description = CleanDescription(p.Description)
	}
	for name, desc := range p.ParamDescriptions {
		prop, ok := s.Input.Properties[name]
		if !ok {
			continue // never invent parameters
		}
		if prop.Description == "" {
			prop.Description = CleanDescription(desc)
		}
	}
	for name, values := range p.Enums {
		prop, ok := s.Input.Properties[name]
		if !ok {
			continue
		}
		if len(prop.Enum) == 0 {
			prop.Enum = values
		}
	}
	s.Examples = append(s.Examples, p.Examples...)
}

// CleanDescription strips formatting markup and collapses whitespace, then
// truncates to a bounded length.
func CleanDescription(text string) string {
	text = strings.NewReplacer("`", "", "**", "", "##", "", "\t", " ").Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxDescriptionLen {
		text = text[:maxDescriptionLen-3] + "..."
	}
	return text
}
