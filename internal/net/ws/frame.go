package ws

import (
	"github.com/vmihailenco/msgpack/v5"

	"presence-room/internal/gateway"
)

// Frame types exchanged over the relay websocket. Every frame is one
// msgpack-encoded binary message.
const (
	FrameWelcome = "welcome"
	FrameMessage = "message"
	FrameTrigger = "trigger"
	FrameError   = "error"
)

// Frame is the relay wire envelope.
type Frame struct {
	Type    string          `msgpack:"type"`
	Token   string          `msgpack:"token,omitempty"`
	Event   string          `msgpack:"event,omitempty"`
	Data    []byte          `msgpack:"data,omitempty"`
	Member  *gateway.Member `msgpack:"member,omitempty"`
	Exclude string          `msgpack:"exclude,omitempty"`
	Error   string          `msgpack:"error,omitempty"`
}

func encodeFrame(f Frame) ([]byte, error) {
	return msgpack.Marshal(&f)
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(data, &f)
	return f, err
}

func messageFrame(msg gateway.Message) Frame {
	return Frame{Type: FrameMessage, Event: msg.Event, Data: msg.Data, Member: msg.Member}
}
