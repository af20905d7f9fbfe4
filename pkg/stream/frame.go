package stream

import (
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

const (
	SyncByte1        byte = 0x94
	SyncByte2        byte = 0xC3
	HeaderLength          = 4
	MaxPayloadLength      = 512
)

var ErrPayloadTooLarge = errors.New("stream: payload too large")

// EncodeFrame wraps payload in the sync + big-endian length header.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayloadLength)
	}

	buf := make([]byte, HeaderLength+len(payload))
	buf[0] = SyncByte1
	buf[1] = SyncByte2
	binary.BigEndian.PutUint16(buf[2:HeaderLength], uint16(len(payload)))
	copy(buf[HeaderLength:], payload)
	return buf, nil
}

func MarshalFrame(msg proto.Message) ([]byte, error) {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(payload)
}
