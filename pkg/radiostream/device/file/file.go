package file

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/norasector/radiostream/pkg/radiostream/device"
	"github.com/pkg/errors"
)

// FileDevice replays a raw stream capture. Pointing it at a serial tty works too,
// as long as the port has already been configured.
type FileDevice struct {
	readFile    *os.File
	readSize    int
	timeBetween time.Duration
}

func NewFileDevice(file string, readSize int, timeBetween time.Duration) (*FileDevice, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "error opening playback file")
	}

	return &FileDevice{
		readFile:    f,
		readSize:    readSize,
		timeBetween: timeBetween,
	}, nil
}

func (f *FileDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	var tick <-chan time.Time
	if f.timeBetween > 0 {
		ticker := time.NewTicker(f.timeBetween)
		defer ticker.Stop()
		tick = ticker.C
	}

	buf := make([]byte, f.readSize)
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}

		n, err := f.readFile.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunks <- chunk:
			}
		}
		if err == io.EOF {
			return device.ErrStreamEnded
		}
		if err != nil {
			return errors.Wrap(err, "error reading playback file")
		}
	}
}

func (f *FileDevice) Stop() error {
	return f.readFile.Close()
}

func (f *FileDevice) Name() string {
	return "file"
}
