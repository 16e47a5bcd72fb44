package proto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"presence-room/internal/world"
)

// WireCodec writes events in the protobuf wire format without generated
// code. Field numbers:
//
//	MemberJoined:  1 id, 2 name, 3 worldDigest
//	MemberLeft:    1 id
//	MoveToTarget:  1 playerId, 2 startPosition, 3 targetPosition, 4 timestamp
//	PlayerStopped, PositionSync: 1 playerId, 2 position, 3 timestamp
//	Vec3:          1 x, 2 y, 3 z (double)
type WireCodec struct{}

func (WireCodec) Name() string { return CodecProtobuf }

func (WireCodec) Encode(event Event) ([]byte, error) {
	var b []byte
	switch e := event.(type) {
	case MemberJoined:
		b = appendString(b, 1, e.ID)
		b = appendString(b, 2, e.Meta.Name)
		b = appendString(b, 3, e.Meta.WorldDigest)
	case MemberLeft:
		b = appendString(b, 1, e.ID)
	case MoveToTarget:
		b = appendString(b, 1, e.PlayerID)
		b = appendVec(b, 2, e.StartPosition)
		b = appendVec(b, 3, e.TargetPosition)
		b = appendInt(b, 4, e.Timestamp)
	case PlayerStopped:
		b = appendString(b, 1, e.PlayerID)
		b = appendVec(b, 2, e.Position)
		b = appendInt(b, 3, e.Timestamp)
	case PositionSync:
		b = appendString(b, 1, e.PlayerID)
		b = appendVec(b, 2, e.Position)
		b = appendInt(b, 3, e.Timestamp)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
	return b, nil
}

func (WireCodec) Decode(name string, data []byte) (Event, error) {
	target, err := newTarget(name)
	if err != nil {
		return nil, err
	}
	err = walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) (int, error) {
		switch e := target.(type) {
		case *MemberJoined:
			switch num {
			case 1:
				return consumeString(typ, value, &e.ID)
			case 2:
				return consumeString(typ, value, &e.Meta.Name)
			case 3:
				return consumeString(typ, value, &e.Meta.WorldDigest)
			}
		case *MemberLeft:
			if num == 1 {
				return consumeString(typ, value, &e.ID)
			}
		case *MoveToTarget:
			switch num {
			case 1:
				return consumeString(typ, value, &e.PlayerID)
			case 2:
				return consumeVec(typ, value, &e.StartPosition)
			case 3:
				return consumeVec(typ, value, &e.TargetPosition)
			case 4:
				return consumeInt(typ, value, &e.Timestamp)
			}
		case *PlayerStopped:
			switch num {
			case 1:
				return consumeString(typ, value, &e.PlayerID)
			case 2:
				return consumeVec(typ, value, &e.Position)
			case 3:
				return consumeInt(typ, value, &e.Timestamp)
			}
		case *PositionSync:
			switch num {
			case 1:
				return consumeString(typ, value, &e.PlayerID)
			case 2:
				return consumeVec(typ, value, &e.Position)
			case 3:
				return consumeInt(typ, value, &e.Timestamp)
			}
		}
		return skip(num, typ, value)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return deref(target), nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendVec(b []byte, num protowire.Number, v world.Vec3) []byte {
	var inner []byte
	for i, f := range [3]float64{v.X, v.Y, v.Z} {
		inner = protowire.AppendTag(inner, protowire.Number(i+1), protowire.Fixed64Type)
		inner = protowire.AppendFixed64(inner, math.Float64bits(f))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

// walkFields calls fn for every field; fn returns how many bytes of value it
// consumed.
func walkFields(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		data = data[m:]
	}
	return nil
}

func wrongType(want, got protowire.Type) error {
	return fmt.Errorf("unexpected wire type %d, want %d", got, want)
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, wrongType(protowire.BytesType, typ)
	}
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = s
	return n, nil
}

func consumeInt(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return 0, wrongType(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = int64(v)
	return n, nil
}

func consumeVec(typ protowire.Type, b []byte, dst *world.Vec3) (int, error) {
	if typ != protowire.BytesType {
		return 0, wrongType(protowire.BytesType, typ)
	}
	inner, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	err := walkFields(inner, func(num protowire.Number, typ protowire.Type, value []byte) (int, error) {
		var slot *float64
		switch num {
		case 1:
			slot = &dst.X
		case 2:
			slot = &dst.Y
		case 3:
			slot = &dst.Z
		default:
			return skip(num, typ, value)
		}
		if typ != protowire.Fixed64Type {
			return 0, wrongType(protowire.Fixed64Type, typ)
		}
		bits, m := protowire.ConsumeFixed64(value)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		*slot = math.Float64frombits(bits)
		return m, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
