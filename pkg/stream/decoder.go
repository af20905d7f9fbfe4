package stream

import (
	"encoding/binary"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
)

// MessageFactory returns an empty message that frame payloads are unmarshaled into.
type MessageFactory func() proto.Message

// Sender receives decoded messages. Send reports false when nobody is listening anymore.
type Sender interface {
	Send(msg proto.Message) bool
}

type decoderState int

const (
	awaitingSync1 decoderState = iota
	awaitingSync2
	awaitingLength
	accumulatingPayload
)

func (s decoderState) String() string {
	switch s {
	case awaitingSync1:
		return "awaiting_sync1"
	case awaitingSync2:
		return "awaiting_sync2"
	case awaitingLength:
		return "awaiting_length"
	case accumulatingPayload:
		return "accumulating_payload"
	}
	return "unknown"
}

// Stats counts what the decoder has seen since it was created.
type Stats struct {
	BytesIngested   uint64 `json:"bytes_ingested"`
	FramesDecoded   uint64 `json:"frames_decoded"`
	DecodeFailures  uint64 `json:"decode_failures"`
	OversizedFrames uint64 `json:"oversized_frames"`
	SyncErrors      uint64 `json:"sync_errors"`
	DroppedSends    uint64 `json:"dropped_sends"`
}

// FrameDecoder reassembles 0x94C3 length-prefixed frames from an arbitrarily
// chunked byte stream and forwards every payload that unmarshals cleanly.
//
// A FrameDecoder is not safe for concurrent use; Ingest must be called from a single goroutine.
type FrameDecoder struct {
	buf        []byte
	state      decoderState
	payloadLen int
	newMessage MessageFactory
	output     Sender
	stats      Stats
	logger     zerolog.Logger
}

type DecoderOption func(d *FrameDecoder)

func WithLogger(logger zerolog.Logger) DecoderOption {
	return func(d *FrameDecoder) {
		d.logger = logger
	}
}

func NewFrameDecoder(output Sender, newMessage MessageFactory, opts ...DecoderOption) *FrameDecoder {
	d := &FrameDecoder{
		buf:        make([]byte, 0, HeaderLength+MaxPayloadLength),
		newMessage: newMessage,
		output:     output,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ingest scans data one byte at a time. Frames may span any number of calls.
func (d *FrameDecoder) Ingest(data []byte) {
	d.stats.BytesIngested += uint64(len(data))
	for _, b := range data {
		d.receiveByte(b)
	}
}

func (d *FrameDecoder) Stats() Stats {
	return d.stats
}

// Buffered returns the number of bytes held for the frame in progress.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

func (d *FrameDecoder) receiveByte(b byte) {
	d.buf = append(d.buf, b)

	switch d.state {
	case awaitingSync1:
		if b != SyncByte1 {
			d.stats.SyncErrors++
			d.reset()
			return
		}
		d.state = awaitingSync2

	case awaitingSync2:
		if b != SyncByte2 {
			d.stats.SyncErrors++
			d.reset()
			return
		}
		d.state = awaitingLength

	case awaitingLength:
		if len(d.buf) < HeaderLength {
			return
		}
		// The length is only validated once, when its second byte arrives.
		d.payloadLen = int(binary.BigEndian.Uint16(d.buf[2:HeaderLength]))
		if d.payloadLen > MaxPayloadLength {
			d.stats.OversizedFrames++
			d.logger.Debug().Int("length", d.payloadLen).Msg("frame length exceeds maximum, resyncing")
			d.reset()
			return
		}
		d.state = accumulatingPayload
		d.completeFrame()

	case accumulatingPayload:
		d.completeFrame()
	}
}

// completeFrame decodes and emits the buffered frame once all payload bytes are present.
func (d *FrameDecoder) completeFrame() {
	if len(d.buf) < HeaderLength+d.payloadLen {
		return
	}
	defer d.reset()

	msg := d.newMessage()
	if err := proto.Unmarshal(d.buf[HeaderLength:HeaderLength+d.payloadLen], msg); err != nil {
		d.stats.DecodeFailures++
		d.logger.Debug().Err(err).Int("length", d.payloadLen).Msg("dropping undecodable frame")
		return
	}

	d.stats.FramesDecoded++
	if !d.output.Send(msg) {
		d.stats.DroppedSends++
		d.logger.Debug().Msg("no receiver for decoded message")
	}
}

// reset truncates the buffer and keeps its backing storage.
func (d *FrameDecoder) reset() {
	d.buf = d.buf[:0]
	d.state = awaitingSync1
	d.payloadLen = 0
}
