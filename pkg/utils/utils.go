package utils

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GetSchemaFromConfig returns the JSON schema of a YAML config struct. Fields
// are named after their yaml tags.
func GetSchemaFromConfig(config any) (string, error) {
	reflector := &jsonschema.Reflector{FieldNameTag: "yaml"}
	schema := reflector.Reflect(config)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
