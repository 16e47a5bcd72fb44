package proto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema reflects the JSON schema for one event variant.
func Schema(name string) (*jsonschema.Schema, error) {
	target, err := newTarget(name)
	if err != nil {
		return nil, err
	}
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(target)
	if schema == nil {
		return nil, fmt.Errorf("reflect schema for %s", name)
	}
	schema.Version = ""
	schema.ID = ""
	schema.Title = name
	schema.Description = fmt.Sprintf("Payload of the %s room event (schema version %d).", name, Version)
	return schema, nil
}

// Schemas reflects every event schema keyed by event name.
func Schemas() (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, len(Names()))
	for _, name := range Names() {
		schema, err := Schema(name)
		if err != nil {
			return nil, err
		}
		out[name] = schema
	}
	return out, nil
}

// compileSchemas turns the reflected schemas into validators.
func compileSchemas() (map[string]*validator.Schema, error) {
	schemas, err := Schemas()
	if err != nil {
		return nil, err
	}
	compiler := validator.NewCompiler()
	compiler.Draft = validator.Draft2020
	compiled := make(map[string]*validator.Schema, len(schemas))
	for name, schema := range schemas {
		data, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", name, err)
		}
		url := "mem://room/" + name + ".schema.json"
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", name, err)
		}
		s, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		compiled[name] = s
	}
	return compiled, nil
}
