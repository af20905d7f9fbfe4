package tcp

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/norasector/radiostream/pkg/radiostream/device"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const readBufferSize = 4096

// TCPDevice reads the stream API of a network attached radio.
type TCPDevice struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewTCPDevice(host string, port int, dialTimeout time.Duration) *TCPDevice {
	return &TCPDevice{
		addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		dialTimeout: dialTimeout,
	}
}

func (d *TCPDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	dialer := net.Dialer{Timeout: d.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return errors.Wrapf(err, "error dialing %s", d.addr)
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	log.Info().Str("addr", d.addr).Msg("connected to radio")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.closeConn()
		case <-done:
		}
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunks <- chunk:
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return device.ErrStreamEnded
			}
			return errors.Wrapf(err, "error reading from %s", d.addr)
		}
	}
}

func (d *TCPDevice) Stop() error {
	return d.closeConn()
}

// closeConn closes the connection at most once, whether cancellation or Stop gets there first.
func (d *TCPDevice) closeConn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *TCPDevice) Name() string {
	return "tcp"
}
