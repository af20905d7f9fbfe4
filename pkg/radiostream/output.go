package radiostream

import (
	"context"

	"google.golang.org/protobuf/proto"
)

// Output handles decoded messages.
type Output interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing,
	// on any errors, or once the receive channel is closed and emptied.
	Start(ctx context.Context) error
	// Receive returns the channel that receives decoded messages. It must return the
	// same channel every time; the Receiver closes it when the stream has ended.
	Receive() chan<- proto.Message
}
