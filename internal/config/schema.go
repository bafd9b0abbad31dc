package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

var schemaOnce struct {
	sync.Once
	payload []byte
	err     error
}

// JSONSchema returns the JSON Schema of the Config struct, reflected
// from its yaml tags, for editor completion and external validation of
// config files. The reflection runs once and is cached.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{FieldNameTag: "yaml"}
		schema := reflector.Reflect(&Config{})
		schemaOnce.payload, schemaOnce.err = json.MarshalIndent(schema, "", "  ")
	})
	return schemaOnce.payload, schemaOnce.err
}
