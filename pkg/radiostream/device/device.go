package device

import (
	"context"
	"errors"
)

// ErrStreamEnded is returned by Start when a finite source has been fully read.
var ErrStreamEnded = errors.New("device: stream ended")

// Device pushes raw byte chunks read from a radio into chunks in arrival order.
// Chunk boundaries carry no meaning.
type Device interface {
	Start(ctx context.Context, chunks chan<- []byte) error
	Stop() error
	Name() string
}
