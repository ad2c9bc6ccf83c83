// Package schema provides JSON schema validation for release-it configuration.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/version"
)

// Schema represents a JSON Schema for validation
type Schema struct {
	ID          string             `json:"$id,omitempty"`
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	OneOf       []*Schema          `json:"oneOf,omitempty"`

	// AdditionalProperties is false for closed objects, or the schema of
	// map values.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}

// ValidationError represents a schema validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Validator validates YAML/JSON documents against a schema
type Validator struct {
	schema *Schema
}

// NewValidator creates a new validator with the given schema
func NewValidator(schema *Schema) *Validator {
	return &Validator{schema: schema}
}

// ValidateFile validates a YAML or JSON file. JSON files may contain
// comments and trailing commas.
func (v *Validator) ValidateFile(path string) *ValidationResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return invalid(path, fmt.Sprintf("failed to read file: %v", err))
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return invalid(path, fmt.Sprintf("invalid JSON: %v", err))
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return invalid(path, fmt.Sprintf("invalid YAML: %v", err))
		}
	}
	if doc == nil {
		return &ValidationResult{Valid: true}
	}

	return v.Validate(doc)
}

func invalid(path, message string) *ValidationResult {
	return &ValidationResult{Errors: []ValidationError{{Path: path, Message: message}}}
}

// Validate validates a decoded document against the schema. Errors are
// ordered by path.
func (v *Validator) Validate(doc any) *ValidationResult {
	result := &ValidationResult{}
	v.validate(v.schema, doc, "", result)
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Path < result.Errors[j].Path
	})
	result.Valid = len(result.Errors) == 0
	return result
}

// validate recursively validates a value against a schema
func (v *Validator) validate(schema *Schema, value any, path string, result *ValidationResult) {
	if schema == nil {
		return
	}

	if len(schema.OneOf) > 0 {
		matches := 0
		for _, s := range schema.OneOf {
			sub := &ValidationResult{}
			v.validate(s, value, path, sub)
			if len(sub.Errors) == 0 {
				matches++
			}
		}
		if matches != 1 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("must match exactly one of the schemas (matched %d)", matches),
			})
		}
		return
	}

	if schema.Type != "" && !checkType(schema.Type, value) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("expected type %s, got %s", schema.Type, typeName(value)),
		})
		return
	}

	if len(schema.Enum) > 0 && !slices.Contains(schema.Enum, value) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value must be one of: %v", schema.Enum),
		})
	}

	switch val := value.(type) {
	case map[string]any:
		for key, item := range val {
			if prop, ok := schema.Properties[key]; ok {
				v.validate(prop, item, joinPath(path, key), result)
				continue
			}
			switch extra := schema.AdditionalProperties.(type) {
			case bool:
				if !extra {
					result.Errors = append(result.Errors, ValidationError{
						Path:    joinPath(path, key),
						Message: "unknown property",
					})
				}
			case *Schema:
				v.validate(extra, item, joinPath(path, key), result)
			}
		}
	case []any:
		for i, item := range val {
			v.validate(schema.Items, item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}

// checkType checks if a value matches the expected type
func checkType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch n := value.(type) {
		case int, int64, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	}
	return false
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64, float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

// joinPath joins path segments
func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

var hookListType = reflect.TypeOf(config.HookList{})

// Generate builds the JSON Schema of the configuration file from the
// config types.
func Generate() *Schema {
	s := forType(reflect.TypeOf(config.Config{}))
	s.Schema = "https://json-schema.org/draft/2020-12/schema"
	s.ID = "https://github.com/oarkflow/releaseit/release-it.schema.json"
	s.Title = "release-it configuration"
	s.Description = "Configuration for .release-it.json, .release-it.jsonc, .release-it.yaml and .release-it.yml"

	s.Properties["$schema"] = &Schema{Type: "string"}
	s.Properties["changelog"].Properties["sort"].Enum = []any{"asc", "desc"}
	s.Properties["hooks"].Description = "Commands keyed by lifecycle stage: " + strings.Join(config.HookNames, ", ")
	s.Properties["increment"].Description = "Increment name (" + strings.Join(version.Increments, ", ") + ") or an explicit version"
	return s
}

func forType(t reflect.Type) *Schema {
	if t == hookListType {
		hook := forType(hookListType.Elem())
		cmd := &Schema{Type: "string"}
		return &Schema{OneOf: []*Schema{
			cmd,
			hook,
			{Type: "array", Items: &Schema{OneOf: []*Schema{cmd, hook}}},
		}}
	}

	switch t.Kind() {
	case reflect.Pointer:
		return forType(t.Elem())
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Schema{Type: "integer"}
	case reflect.Slice:
		return &Schema{Type: "array", Items: forType(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: forType(t.Elem())}
	case reflect.Struct:
		s := &Schema{Type: "object", Properties: map[string]*Schema{}, AdditionalProperties: false}
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				continue
			}
			s.Properties[name] = forType(f.Type)
		}
		return s
	}
	return &Schema{}
}

// ValidateConfig validates a configuration file against the generated schema
func ValidateConfig(path string) *ValidationResult {
	result := NewValidator(Generate()).ValidateFile(path)
	for _, err := range result.Errors {
		log.Debug("Validation error", "path", err.Path, "message", err.Message)
	}
	return result
}

// Marshal returns the indented schema document.
func Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(Generate(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
