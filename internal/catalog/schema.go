package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"hll/contentbot/internal/domain"
)

// Raw catalog files are validated against a schema per catalog kind before
// normalization, so shape problems surface as load errors instead of broken
// menus.

const mapsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["title"],
    "properties": {
      "title":    {"type": "string", "minLength": 1},
      "terrain":  {"type": "string"},
      "points":   {"type": "string"},
      "infantry": {"type": "string"},
      "armor":    {"type": "string"}
    }
  }
}`

const tanksSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {
      "type": "object",
      "required": ["display_name", "title"],
      "properties": {
        "display_name":      {"type": "string", "minLength": 1},
        "title":             {"type": "string", "minLength": 1},
        "short_description": {"type": "string"},
        "emoji":             {"type": "string"},
        "thumbnail":         {"type": "string"}
      }
    }
  }
}`

var schemas = map[domain.CatalogKind]*jsonschema.Schema{
	domain.CatalogMaps:  jsonschema.MustCompileString("maps.schema.json", mapsSchema),
	domain.CatalogTanks: jsonschema.MustCompileString("tanks.schema.json", tanksSchema),
}

func validateSchema(kind domain.CatalogKind, data []byte) error {
	schema, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("no schema registered for catalog %s", kind)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
