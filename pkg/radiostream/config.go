package radiostream

import (
	"time"

	"github.com/norasector/radiostream/pkg/stream"
)

type Options struct {
	// MessageFactory creates the message type frame payloads decode into.
	MessageFactory  stream.MessageFactory
	Outputs         []Output
	MetricsInterval time.Duration
}
