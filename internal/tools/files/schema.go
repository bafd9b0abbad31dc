package files

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var schemaReflector = &jsonschema.Reflector{
	DoNotReference:           true,
	ExpandedStruct:           true,
	AllowAdditionalProperties: false,
}

// generatedSchema reflects T's jsonschema struct tags into the same wire
// shape Schema() returns elsewhere in this package: a plain JSON Schema
// object, with no "$schema"/"$id" envelope for providers to choke on.
func generatedSchema[T any]() json.RawMessage {
	var zero T
	schema := schemaReflector.Reflect(zero)
	schema.Version = ""
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
