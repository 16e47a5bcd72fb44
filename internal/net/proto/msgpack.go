package proto

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec encodes events as msgpack maps keyed like the JSON form.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Encode(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: nil event", ErrUnknownEvent)
	}
	return msgpack.Marshal(event)
}

func (MsgpackCodec) Decode(name string, data []byte) (Event, error) {
	target, err := newTarget(name)
	if err != nil {
		return nil, err
	}
	if err := msgpack.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return deref(target), nil
}
