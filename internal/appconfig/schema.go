package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema describes the structural shape of a config document. Semantic
// rules (known hosts, unique names) live in Validate.
const configSchema = `{
  "type": "object",
  "required": ["sources"],
  "properties": {
    "hosts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "url"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "url": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "apiKey": {"type": "string"},
          "models": {"type": "array", "items": {"type": "string"}},
          "parameters": {"type": "object"}
        }
      }
    },
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "collector", "generator", "benchmarkId", "locator"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "collector": {"type": "string", "minLength": 1},
          "generator": {"type": "string", "minLength": 1},
          "benchmarkId": {"type": "integer", "minimum": 1},
          "locator": {"type": "string"},
          "collectorOptions": {"type": "object"},
          "generatorOptions": {"type": "object"},
          "transforms": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {
                "type": {"type": "string"},
                "fields": {"type": "array", "items": {"type": "string"}}
              }
            }
          },
          "disabled": {"type": "boolean"}
        }
      }
    },
    "testModels": {"type": "array", "items": {"$ref": "#/definitions/modelRef"}},
    "testingEnabled": {"type": "boolean"},
    "judge": {"$ref": "#/definitions/modelRef"},
    "intervalHours": {"type": "number", "minimum": 0},
    "pollIntervalSeconds": {"type": "integer", "minimum": 0},
    "concurrency": {"type": "integer", "minimum": 0},
    "timeout": {"type": "integer", "minimum": 0},
    "cycleTimeoutMinutes": {"type": "integer", "minimum": 0},
    "dataDir": {"type": "string"},
    "markerStore": {"enum": ["", "file", "sqlite"]},
    "registry": {"type": "object"},
    "statusAddr": {"type": "string"},
    "logFile": {"type": "string"},
    "debug": {"type": "boolean"}
  },
  "definitions": {
    "modelRef": {
      "type": "object",
      "properties": {
        "host": {"type": "string"},
        "model": {"type": "string"}
      }
    }
  }
}`

// ValidateDocument checks a raw JSON config document against the schema.
func ValidateDocument(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("config schema: " + strings.Join(msgs, "; "))
}

// Parse schema-checks and decodes a raw JSON config document.
func Parse(raw []byte) (Config, error) {
	if err := ValidateDocument(raw); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
