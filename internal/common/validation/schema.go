package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const fieldWorkerSchemaJSON = `{
  "type": "object",
  "properties": {
    "name":            {"type": "string", "minLength": 1, "pattern": "\\S"},
    "phone_number":    {"type": "string", "pattern": "^\\d{10}$"},
    "master_category": {"type": "string", "minLength": 1, "pattern": "\\S"}
  },
  "required": ["name", "phone_number", "master_category"]
}`

const complaintIntakeSchemaJSON = `{
  "type": "object",
  "properties": {
    "phone_number": {"type": "string", "minLength": 1},
    "category":     {"type": "string", "minLength": 1, "pattern": "\\S"},
    "subcategory":  {"type": ["string", "null"]},
    "address":      {"type": "string"},
    "description":  {"type": "string"}
  },
  "required": ["phone_number", "category"]
}`

// Compiled schemas for the documents accepted at the service edge.
var (
	FieldWorkerSchema     = MustCompile(fieldWorkerSchemaJSON)
	ComplaintIntakeSchema = MustCompile(complaintIntakeSchemaJSON)
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc, which may be a struct with json tags or a decoded map.
func (s *Schema) Validate(doc interface{}) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(re),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return out
}

// fieldName reports the offending property, including for "required" errors
// which gojsonschema attaches to the parent object.
func fieldName(re gojsonschema.ResultError) string {
	field := re.Field()
	prop, ok := re.Details()["property"].(string)
	if !ok || prop == "" || field == prop || strings.HasSuffix(field, "."+prop) {
		return field
	}
	if field == "" || field == "(root)" {
		return prop
	}
	return field + "." + prop
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Summary joins every error message into one line.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
