// Package validation checks inbound payloads (HTTP bodies, job variables and
// feedback events) against JSON schemas.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SearchRequestSchema describes a search request.
const SearchRequestSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query":    {"type": "string", "minLength": 1, "maxLength": 500},
    "category": {"type": "string", "maxLength": 64},
    "region":   {"type": "string", "maxLength": 16},
    "limit":    {"type": "integer", "minimum": 0, "maximum": 1000}
  }
}`

// FeedbackSchema describes one learning interaction.
const FeedbackSchema = `{
  "type": "object",
  "required": ["question", "answer", "confidence"],
  "properties": {
    "question":         {"type": "string", "minLength": 1},
    "answer":           {"type": "string"},
    "sources":          {"type": "array", "items": {"type": "string"}},
    "confidence":       {"type": "number", "minimum": 0, "maximum": 100},
    "feedback":         {"type": "string", "enum": ["positive", "negative", "neutral"]},
    "correctAnswer":    {"type": "string"},
    "category":         {"type": "string"},
    "userId":           {"type": "string"},
    "sessionId":        {"type": "string"}
  }
}`

// SourceSchema describes a source definition registered at runtime.
const SourceSchema = `{
  "type": "object",
  "required": ["name", "tier", "region"],
  "properties": {
    "name":       {"type": "string", "minLength": 1},
    "baseUrl":    {"type": "string", "pattern": "^https?://"},
    "tier":       {"type": "string", "enum": ["high", "medium", "low"]},
    "region":     {"type": "string", "minLength": 1},
    "categories": {"type": "array", "items": {"type": "string"}},
    "official":   {"type": "boolean"},
    "kind":       {"type": "string", "enum": ["web_search", "search_index", "knowledge_base"]}
  }
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validate checks document against schemaJSON. document may be any value
// encodable as JSON. An error is returned only when the schema itself is
// unusable.
func Validate(schemaJSON string, document interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	vr := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				field = prop
			}
		}
		vr.Errors = append(vr.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    errorCode(e.Type()),
		})
	}
	return vr, nil
}

func errorCode(schemaType string) string {
	switch schemaType {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "invalid_type":
		return "INVALID_TYPE"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	case "pattern":
		return "PATTERN_MISMATCH"
	case "number_gte":
		return "MINIMUM_VIOLATION"
	case "number_lte":
		return "MAXIMUM_VIOLATION"
	default:
		return strings.ToUpper(schemaType)
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Summary joins all error messages into one line.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

var urlPattern = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)

// ValidateURL validates URL format
func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}
