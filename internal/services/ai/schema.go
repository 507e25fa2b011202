package ai

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	itemsKey                = "items"
)

// GenerateSchema reflects T into a JSON schema map suitable for a
// structured-output request. Required fields come from `jsonschema` tags.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		// Reflection of a static Go type cannot produce invalid JSON.
		panic(err)
	}
	delete(schemaObj, "$schema")
	delete(schemaObj, "$id")
	closeObjects(schemaObj)
	return schemaObj
}

// IsObjectSchema reports whether the schema root is a JSON object
func IsObjectSchema(schema map[string]any) bool {
	t, _ := schema[typeKey].(string)
	return t == "object"
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// closeObjects forbids additional properties on every nested object
func closeObjects(schema map[string]any) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false
	}

	if properties, ok := schema[propertiesKey].(map[string]any); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				closeObjects(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]any); ok {
		closeObjects(items)
	}
}
