package importer

import (
	"fmt"
	"strings"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const (
	MaxNodes       = 100
	MaxEdges       = 200
	MaxLabelLength = 200
	MaxNameLength  = 200
)

// payloadSchema is closed at the top level. Node and edge objects accept extra keys;
// their known fields are typed and unknown config keys are dropped by the typed decode.
var payloadSchema = gojsonschema.NewStringLoader(fmt.Sprintf(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "nodes"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": %[1]d},
    "description": {"type": ["string", "null"]},
    "growth_stage": {"type": ["string", "null"]},
    "exportedAt": {"type": "string"},
    "version": {"type": "string"},
    "nodes": {
      "type": "array",
      "maxItems": %[2]d,
      "items": {
        "type": "object",
        "required": ["id", "type", "position", "data"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": [%[3]s]},
          "position": {
            "type": "object",
            "required": ["x", "y"],
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          },
          "data": {
            "type": "object",
            "properties": {
              "label": {"type": "string", "maxLength": %[4]d},
              "config": {"type": ["object", "null"]}
            }
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "maxItems": %[5]d,
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "sourceHandle": {"type": ["string", "null"]},
          "targetHandle": {"type": ["string", "null"]}
        }
      }
    }
  }
}`, MaxNameLength, MaxNodes, kindEnum(), MaxLabelLength, MaxEdges))

func kindEnum() string {
	kinds := models.NodeKinds()
	quoted := make([]string, 0, len(kinds))

	for _, kind := range kinds {
		quoted = append(quoted, fmt.Sprintf("%q", kind))
	}

	return strings.Join(quoted, ", ")
}

// validateSchema checks raw JSON against the payload schema and returns one line per violation.
func validateSchema(raw []byte) ([]string, error) {
	result, err := gojsonschema.Validate(payloadSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}

	return violations, nil
}
