package collection

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "profiles": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "default": {"type": "boolean"},
          "data": {"type": "object", "additionalProperties": {"type": ["string", "number", "boolean"]}}
        }
      }
    },
    "recipes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "required": ["url"],
        "properties": {
          "name": {"type": "string"},
          "method": {"type": "string"},
          "url": {"type": "string"},
          "query": {"$ref": "#/definitions/params"},
          "headers": {"$ref": "#/definitions/params"},
          "authentication": {
            "type": "object",
            "additionalProperties": false,
            "required": ["type"],
            "properties": {
              "type": {"enum": ["basic", "bearer"]},
              "username": {"type": "string"},
              "password": {"type": "string"},
              "token": {"type": "string"}
            }
          },
          "body": {
            "oneOf": [
              {"type": "string"},
              {
                "type": "object",
                "additionalProperties": false,
                "properties": {
                  "raw": {"type": "string"},
                  "form_urlencoded": {"$ref": "#/definitions/params"},
                  "form_multipart": {"$ref": "#/definitions/params"}
                }
              }
            ]
          }
        }
      }
    }
  },
  "definitions": {
    "params": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean"]}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// SchemaError lists every structural problem found in a collection file.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid collection:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Validate checks collection YAML against the collection JSON schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid collection YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &SchemaError{Problems: problems}
}
