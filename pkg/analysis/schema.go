package analysis

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// reportSchema is the structural contract every raw analyzer response must
// satisfy before it is accepted. weak_areas must be non-empty whenever the
// error list is non-empty.
const reportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["errors", "weak_areas", "quality_score"],
  "properties": {
    "errors": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "severity", "line", "message"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "severity": {"type": "string", "enum": ["low", "medium", "high"]},
          "line": {"type": "integer", "minimum": 0},
          "message": {"type": "string"},
          "suggestion": {"type": "string"}
        }
      }
    },
    "weak_areas": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "quality_score": {"type": "number", "minimum": 0, "maximum": 100},
    "analysis_time_ms": {"type": "integer", "minimum": 0}
  },
  "if": {
    "properties": {"errors": {"minItems": 1}}
  },
  "then": {
    "properties": {"weak_areas": {"minItems": 1}}
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledReportSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = jsonschema.CompileString("analysis-report.json", reportSchema)
	})
	return compiledSchema, compileErr
}

// ParseReport validates raw analyzer output against the report schema and
// decodes it. Any violation is classified InvalidResponse, which the retry
// loop treats as retryable up to the shared budget.
func ParseReport(raw []byte) (*RawReport, error) {
	schema, err := compiledReportSchema()
	if err != nil {
		return nil, fmt.Errorf("compile report schema: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, NewError(KindInvalidResponse, "response is not valid JSON", err)
	}

	if err := schema.Validate(parsed); err != nil {
		return nil, NewError(KindInvalidResponse, "response violates report schema", err)
	}

	var report RawReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, NewError(KindInvalidResponse, "response decode failed", err)
	}

	return &report, nil
}
