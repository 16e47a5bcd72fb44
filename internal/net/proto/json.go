package proto

import (
	"bytes"
	"encoding/json"
	"fmt"

	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONCodec encodes events as JSON objects and validates inbound payloads
// against the reflected schemas before decoding them.
type JSONCodec struct {
	schemas map[string]*validator.Schema
}

// NewJSONCodec compiles the event schemas.
func NewJSONCodec() (*JSONCodec, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &JSONCodec{schemas: schemas}, nil
}

func (c *JSONCodec) Name() string { return CodecJSON }

func (c *JSONCodec) Encode(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: nil event", ErrUnknownEvent)
	}
	return json.Marshal(event)
}

func (c *JSONCodec) Decode(name string, data []byte) (Event, error) {
	target, err := newTarget(name)
	if err != nil {
		return nil, err
	}
	if schema, ok := c.schemas[name]; ok {
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		var raw any
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if err := schema.Validate(raw); err != nil {
			return nil, fmt.Errorf("validate %s: %w", name, err)
		}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return deref(target), nil
}
