// Package schema defines and validates a data event's shape: field
// names, types, and constraints, checked against a map[string]any event
// by schema.Processor.
package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Schema validates an event, either as a whole or one field at a time.
type Schema interface {
	Validate(data map[string]any) error
	ValidateField(field string, value any) error
}

// FieldType names a field's expected value shape.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeObject  FieldType = "object"
	FieldTypeArray   FieldType = "array"
	FieldTypeAny     FieldType = "any"
)

// FieldSchema describes one field's constraints.
type FieldSchema struct {
	Name        string        `json:"name" yaml:"name"`
	Type        FieldType     `json:"type" yaml:"type"`
	Required    bool          `json:"required" yaml:"required"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Pattern     string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`       // regex, string fields only
	MinLength   *int          `json:"min_length,omitempty" yaml:"min_length,omitempty"` // string fields only
	MaxLength   *int          `json:"max_length,omitempty" yaml:"max_length,omitempty"` // string fields only
	Min         *float64      `json:"min,omitempty" yaml:"min,omitempty"`               // number/integer fields only
	Max         *float64      `json:"max,omitempty" yaml:"max,omitempty"`               // number/integer fields only
	Enum        []any         `json:"enum,omitempty" yaml:"enum,omitempty"`             // allowed values
	Items       *FieldSchema  `json:"items,omitempty" yaml:"items,omitempty"`           // array element schema
	Properties  []FieldSchema `json:"properties,omitempty" yaml:"properties,omitempty"` // object field schemas
}

// DataSchema is a named, ordered set of FieldSchemas an event must
// satisfy.
type DataSchema struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldSchema `json:"fields" yaml:"fields"`
	Strict      bool          `json:"strict" yaml:"strict"` // reject fields not declared in Fields
}

// Validate checks data against every FieldSchema in s, accumulating all
// failures into a ValidationErrors rather than stopping at the first.
func (s *DataSchema) Validate(data map[string]any) error {
	errors := &ValidationErrors{}

	for _, field := range s.Fields {
		value, exists := getNestedField(data, field.Name)

		if field.Required && !exists {
			errors.Add(field.Name, "required field is missing")
			continue
		}

		if exists {
			if err := s.validateField(&field, value); err != nil {
				errors.Add(field.Name, err.Error())
			}
		}
	}

	if s.Strict {
		definedFields := make(map[string]bool)
		for _, field := range s.Fields {
			definedFields[field.Name] = true
		}

		for key := range data {
			if !definedFields[key] {
				errors.Add(key, "field is not declared in the schema")
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidateField checks a single named field's value against its
// FieldSchema.
func (s *DataSchema) ValidateField(fieldName string, value any) error {
	for _, field := range s.Fields {
		if field.Name == fieldName {
			return s.validateField(&field, value)
		}
	}
	return fmt.Errorf("field %q is not declared in the schema", fieldName)
}

func (s *DataSchema) validateField(field *FieldSchema, value any) error {
	if value == nil {
		if field.Required {
			return fmt.Errorf("null value is not allowed")
		}
		return nil
	}

	if err := validateType(field.Type, value); err != nil {
		return err
	}

	switch field.Type {
	case FieldTypeString:
		str, _ := value.(string)
		if field.MinLength != nil && len(str) < *field.MinLength {
			return fmt.Errorf("must be at least %d characters long", *field.MinLength)
		}
		if field.MaxLength != nil && len(str) > *field.MaxLength {
			return fmt.Errorf("must be at most %d characters long", *field.MaxLength)
		}
		if field.Pattern != "" {
			matched, err := regexp.MatchString(field.Pattern, str)
			if err != nil {
				return fmt.Errorf("pattern validation error: %w", err)
			}
			if !matched {
				return fmt.Errorf("does not match pattern %q", field.Pattern)
			}
		}

	case FieldTypeNumber, FieldTypeInteger:
		num := toFloat64(value)
		if field.Min != nil && num < *field.Min {
			return fmt.Errorf("must be at least %v", *field.Min)
		}
		if field.Max != nil && num > *field.Max {
			return fmt.Errorf("must be at most %v", *field.Max)
		}

	case FieldTypeArray:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("is not an array")
		}
		if field.Items != nil {
			for i, item := range arr {
				if err := s.validateField(field.Items, item); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
		}

	case FieldTypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("is not an object")
		}
		if len(field.Properties) > 0 {
			for _, prop := range field.Properties {
				propValue, exists := obj[prop.Name]
				if prop.Required && !exists {
					return fmt.Errorf("property %q is missing", prop.Name)
				}
				if exists {
					if err := s.validateField(&prop, propValue); err != nil {
						return fmt.Errorf("property %q: %w", prop.Name, err)
					}
				}
			}
		}
	}

	if len(field.Enum) > 0 {
		found := false
		for _, enumVal := range field.Enum {
			if reflect.DeepEqual(value, enumVal) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value not allowed, must be one of: %v", field.Enum)
		}
	}

	return nil
}

func validateType(expectedType FieldType, value any) error {
	if expectedType == FieldTypeAny {
		return nil
	}

	switch expectedType {
	case FieldTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	case FieldTypeNumber:
		switch value.(type) {
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			// OK
		default:
			return fmt.Errorf("must be a number")
		}
	case FieldTypeInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			// OK
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("must be an integer")
			}
		default:
			return fmt.Errorf("must be an integer")
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case FieldTypeArray:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("must be an array")
		}
	case FieldTypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("must be an object")
		}
	}

	return nil
}

func toFloat64(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	default:
		return 0
	}
}

func getNestedField(data map[string]any, fieldPath string) (any, bool) {
	parts := strings.Split(fieldPath, ".")
	current := any(data)

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			val, exists := v[part]
			if !exists {
				return nil, false
			}
			current = val
		default:
			return nil, false
		}
	}

	return current, true
}

// ValidationErrors collects the per-field failures from a Validate call.
type ValidationErrors struct {
	errors []FieldError
}

// FieldError is one field's validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Add appends a field failure.
func (e *ValidationErrors) Add(field, message string) {
	e.errors = append(e.errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any failure was added.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.errors) > 0
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	if len(e.errors) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e.errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(msgs, "; ")
}

// Errors returns every accumulated FieldError.
func (e *ValidationErrors) Errors() []FieldError {
	return e.errors
}

// NewDataSchemaFromConfig builds a DataSchema from a decoded config map
// (e.g. the processor's JSON-decoded "schema" option).
func NewDataSchemaFromConfig(config map[string]any) (*DataSchema, error) {
	schema := &DataSchema{}

	if name, ok := config["name"].(string); ok {
		schema.Name = name
	}
	if desc, ok := config["description"].(string); ok {
		schema.Description = desc
	}
	if strict, ok := config["strict"].(bool); ok {
		schema.Strict = strict
	}

	if fields, ok := config["fields"].([]any); ok {
		for _, f := range fields {
			if fieldMap, ok := f.(map[string]any); ok {
				field, err := parseFieldSchema(fieldMap)
				if err != nil {
					return nil, err
				}
				schema.Fields = append(schema.Fields, *field)
			}
		}
	}

	return schema, nil
}

func parseFieldSchema(config map[string]any) (*FieldSchema, error) {
	field := &FieldSchema{}

	if name, ok := config["name"].(string); ok {
		field.Name = name
	}
	if typ, ok := config["type"].(string); ok {
		field.Type = FieldType(typ)
	}
	if required, ok := config["required"].(bool); ok {
		field.Required = required
	}
	if desc, ok := config["description"].(string); ok {
		field.Description = desc
	}
	if pattern, ok := config["pattern"].(string); ok {
		field.Pattern = pattern
	}
	if minLen, ok := config["min_length"].(float64); ok {
		v := int(minLen)
		field.MinLength = &v
	}
	if maxLen, ok := config["max_length"].(float64); ok {
		v := int(maxLen)
		field.MaxLength = &v
	}
	if min, ok := config["min"].(float64); ok {
		field.Min = &min
	}
	if max, ok := config["max"].(float64); ok {
		field.Max = &max
	}
	if enum, ok := config["enum"].([]any); ok {
		field.Enum = enum
	}

	// nested items, for array fields
	if items, ok := config["items"].(map[string]any); ok {
		itemSchema, err := parseFieldSchema(items)
		if err != nil {
			return nil, err
		}
		field.Items = itemSchema
	}

	// nested properties, for object fields
	if props, ok := config["properties"].([]any); ok {
		for _, p := range props {
			if propMap, ok := p.(map[string]any); ok {
				propSchema, err := parseFieldSchema(propMap)
				if err != nil {
					return nil, err
				}
				field.Properties = append(field.Properties, *propSchema)
			}
		}
	}

	return field, nil
}
