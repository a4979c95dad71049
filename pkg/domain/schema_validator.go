package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PropertiesToJSONSchema renders node properties as a draft 2020-12 object schema.
func PropertiesToJSONSchema(properties []NodeProperty) map[string]any {
	props := map[string]any{}
	required := []string{}

	for _, property := range properties {
		props[property.Key] = propertySchema(property)

		if property.Required {
			required = append(required, property.Key)
		}
	}

	schema := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func propertySchema(property NodeProperty) map[string]any {
	schema := map[string]any{}

	if property.Description != "" {
		schema["description"] = property.Description
	}

	switch property.Type {
	case NodePropertyType_Integer:
		schema["type"] = "integer"
	case NodePropertyType_Number:
		schema["type"] = "number"
	case NodePropertyType_Boolean:
		schema["type"] = "boolean"
	case NodePropertyType_Array, NodePropertyType_TagInput:
		schema["type"] = "array"
		schema["items"] = map[string]any{"type": "string"}
	case NodePropertyType_Map:
		schema["type"] = "object"
	default:
		schema["type"] = "string"

		if property.Pattern != "" {
			schema["pattern"] = property.Pattern
		}

		if property.MinLength > 0 {
			schema["minLength"] = property.MinLength
		}

		if property.MaxLength > 0 {
			schema["maxLength"] = property.MaxLength
		}
	}

	if len(property.Options) > 0 {
		values := make([]any, 0, len(property.Options))
		for _, option := range property.Options {
			values = append(values, option.Value)
		}

		schema["enum"] = values
	}

	if property.NumberOpts != nil {
		if property.NumberOpts.Min != nil {
			schema["minimum"] = *property.NumberOpts.Min
		}

		if property.NumberOpts.Max != nil {
			schema["maximum"] = *property.NumberOpts.Max
		}
	}

	return schema
}

type SchemaValidator struct {
	compiled sync.Map
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate checks config against the descriptor's config properties and
// returns a *ValidationError naming each failing field.
func (v *SchemaValidator) Validate(descriptor Descriptor, config map[string]any) error {
	subject := fmt.Sprintf("%s config", descriptor.Key())

	issues := []FieldIssue{}
	for _, property := range descriptor.ConfigProperties {
		if !property.Required {
			continue
		}

		value, ok := config[property.Key]
		if !ok || value == nil {
			issues = append(issues, FieldIssue{Field: property.Key, Message: "is required"})
			continue
		}

		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			issues = append(issues, FieldIssue{Field: property.Key, Message: "is required"})
		}
	}

	if len(issues) > 0 {
		return NewValidationError(subject, issues...)
	}

	schema, err := v.schemaFor(descriptor)
	if err != nil {
		return err
	}

	instance, err := normalizeInstance(config)
	if err != nil {
		return NewValidationError(subject, FieldIssue{Message: err.Error()})
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}

	var schemaErr *jsonschema.ValidationError
	if !errors.As(err, &schemaErr) {
		return fmt.Errorf("failed to validate %s: %w", subject, err)
	}

	issues = collectIssues(schemaErr, nil)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })

	return NewValidationError(subject, issues...)
}

func (v *SchemaValidator) schemaFor(descriptor Descriptor) (*jsonschema.Schema, error) {
	key := descriptor.Key()

	if cached, ok := v.compiled.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	raw, err := json.Marshal(PropertiesToJSONSchema(descriptor.ConfigProperties))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", key, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := fmt.Sprintf("mem://%s.json", strings.ReplaceAll(key, ":", "/"))
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema for %s: %w", key, err)
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", key, err)
	}

	v.compiled.Store(key, schema)

	return schema, nil
}

// normalizeInstance round-trips config through JSON so Go-typed values
// (ints, typed slices) become the generic shapes the validator expects.
func normalizeInstance(config map[string]any) (any, error) {
	if config == nil {
		config = map[string]any{}
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, err
	}

	return instance, nil
}

func collectIssues(err *jsonschema.ValidationError, issues []FieldIssue) []FieldIssue {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(err.InstanceLocation, "/")
		field = strings.ReplaceAll(field, "/", ".")

		return append(issues, FieldIssue{Field: field, Message: err.Message})
	}

	for _, cause := range err.Causes {
		issues = collectIssues(cause, issues)
	}

	return issues
}
