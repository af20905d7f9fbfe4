package output

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const logBufferLength = 32

// LogOutput writes every decoded message to the logger as JSON.
type LogOutput struct {
	recvChan chan proto.Message
	logger   zerolog.Logger
}

func NewLogOutput(logger zerolog.Logger) *LogOutput {
	return &LogOutput{
		recvChan: make(chan proto.Message, logBufferLength),
		logger:   logger,
	}
}

func (l *LogOutput) Receive() chan<- proto.Message {
	return l.recvChan
}

func (l *LogOutput) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-l.recvChan:
			if !ok {
				return nil
			}
			encoded, err := protojson.Marshal(msg)
			if err != nil {
				l.logger.Warn().Err(err).Msg("error marshaling message to json")
				continue
			}
			l.logger.Info().
				Str("type", string(msg.ProtoReflect().Descriptor().FullName())).
				RawJSON("message", encoded).
				Msg("decoded message")
		}
	}
}
