package proto

import (
	"fmt"
	"sort"
)

// Codec converts events to and from relay payloads. The event name travels
// beside the payload, so Decode is told which variant to expect.
type Codec interface {
	Name() string
	Encode(event Event) ([]byte, error)
	Decode(name string, data []byte) (Event, error)
}

const (
	CodecJSON     = "json"
	CodecMsgpack  = "msgpack"
	CodecProtobuf = "protowire"
)

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return NewJSONCodec()
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	case CodecProtobuf:
		return WireCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (known: %v)", name, CodecNames())
	}
}

// CodecNames lists the registered codecs.
func CodecNames() []string {
	names := []string{CodecJSON, CodecMsgpack, CodecProtobuf}
	sort.Strings(names)
	return names
}
