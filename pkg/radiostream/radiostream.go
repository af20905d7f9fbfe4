package radiostream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/radiostream/pkg/radiostream/device"
	"github.com/norasector/radiostream/pkg/radiostream/status"
	"github.com/norasector/radiostream/pkg/stream"
	"github.com/norasector/radiostream/pkg/util"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
)

const rawChunkBuffer = 16

// Receiver reads raw bytes from a device, reassembles frames and fans decoded
// messages out to the configured outputs.
type Receiver struct {
	device       device.Device
	opts         Options
	writeAPI     api.WriteAPI
	rawChan      chan []byte
	mailbox      *stream.Mailbox
	decoder      *stream.FrameDecoder
	statusServer *status.Server
	logger       zerolog.Logger

	mu             sync.RWMutex
	stats          stream.Stats
	skippedOutputs uint64
	ingestMicros   int64
	cancel         context.CancelFunc
}

type ReceiverOption func(r *Receiver) error

func WithInfluxDB(influxClient api.WriteAPI) ReceiverOption {
	return func(r *Receiver) error {
		r.writeAPI = influxClient
		return nil
	}
}

func WithStatusServer(srv *status.Server) ReceiverOption {
	return func(r *Receiver) error {
		r.statusServer = srv
		return nil
	}
}

func WithLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

func NewReceiver(dev device.Device, options Options, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		device:   dev,
		opts:     options,
		rawChan:  make(chan []byte, rawChunkBuffer),
		mailbox:  stream.NewMailbox(),
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.opts.MessageFactory == nil {
		return nil, fmt.Errorf("must specify a message factory")
	}

	r.decoder = stream.NewFrameDecoder(r.mailbox, r.opts.MessageFactory,
		stream.WithLogger(r.logger.With().Str("device", dev.Name()).Logger()))

	return r, nil
}

// Stats returns the decoder counters as of the last ingested chunk.
func (r *Receiver) Stats() stream.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Receiver) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	r.mailbox.Close()
	return r.device.Stop()
}

// Start runs until ctx is done, an error occurs, or a finite device runs dry, in
// which case every buffered byte is decoded, outputs are drained and
// device.ErrStreamEnded is returned.
func (r *Receiver) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	// Outputs are not tied to the decoding pipeline so that they can finish
	// what was queued before the stream ended.
	outputs, outCtx := errgroup.WithContext(ctx)
	for _, output := range r.opts.Outputs {
		thisOutput := output
		outputs.Go(func() error {
			err := thisOutput.Start(outCtx)
			if err != nil && outCtx.Err() == nil {
				cancel()
			}
			return err
		})
	}

	eg, pipeCtx := errgroup.WithContext(ctx)
	drainCtx, finishDrain := context.WithCancel(pipeCtx)
	defer finishDrain()

	eg.Go(func() error {
		err := r.device.Start(pipeCtx, r.rawChan)
		if errors.Is(err, device.ErrStreamEnded) {
			r.logger.Info().Str("device", r.device.Name()).Msg("device stream ended")
			close(r.rawChan)
			return nil
		}
		return err
	})

	eg.Go(func() error {
		return r.processRawBytes(pipeCtx, finishDrain)
	})

	eg.Go(func() error {
		return r.dispatchMessages(pipeCtx, drainCtx)
	})

	if r.opts.MetricsInterval > 0 {
		eg.Go(func() error {
			return r.reportMetrics(pipeCtx)
		})
	}

	if r.statusServer != nil {
		eg.Go(func() error {
			return r.statusServer.Run(pipeCtx)
		})
	}

	r.logger.Info().
		Str("device", r.device.Name()).
		Int("outputs", len(r.opts.Outputs)).
		Msg("Starting")

	err := eg.Wait()
	if errors.Is(err, device.ErrStreamEnded) {
		// dispatchMessages has returned, nothing sends to the outputs anymore.
		for _, output := range r.opts.Outputs {
			close(output.Receive())
		}
	} else {
		cancel()
	}

	outErr := outputs.Wait()
	if err == nil || (errors.Is(err, context.Canceled) && outErr != nil && !errors.Is(outErr, context.Canceled)) {
		return outErr
	}
	return err
}

// processRawBytes is the only caller of Ingest.
func (r *Receiver) processRawBytes(ctx context.Context, finishDrain context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-r.rawChan:
			if !ok {
				finishDrain()
				return nil
			}

			us := util.TimeOperationMicroseconds(func() {
				r.decoder.Ingest(chunk)
			})
			stats := r.decoder.Stats()

			r.mu.Lock()
			r.stats = stats
			r.ingestMicros += us
			r.mu.Unlock()

			if r.statusServer != nil {
				r.statusServer.UpdateStats(stats)
			}
		}
	}
}

func (r *Receiver) dispatchMessages(ctx, drainCtx context.Context) error {
	for {
		msg, err := r.mailbox.Recv(drainCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, stream.ErrMailboxClosed) {
				return nil
			}

			// Ingest has finished, flush whatever it produced last.
			for {
				msg, ok := r.mailbox.TryRecv()
				if !ok {
					break
				}
				r.dispatch(msg)
			}
			r.writeMetrics()
			return device.ErrStreamEnded
		}
		r.dispatch(msg)
	}
}

func (r *Receiver) dispatch(msg proto.Message) {
	if r.statusServer != nil {
		r.statusServer.Record(msg)
	}

	skipped := 0
	for _, output := range r.opts.Outputs {
		select {
		case output.Receive() <- msg:
			// We will not wait on blocked outputs.
		default:
			skipped++
		}
	}

	if skipped > 0 {
		r.mu.Lock()
		r.skippedOutputs += uint64(skipped)
		r.mu.Unlock()
	}
}

func (r *Receiver) reportMetrics(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.writeMetrics()
		}
	}
}

func (r *Receiver) writeMetrics() {
	r.mu.RLock()
	stats := r.stats
	skipped := r.skippedOutputs
	ingestMicros := r.ingestMicros
	r.mu.RUnlock()

	r.writeAPI.WritePoint(influxdb2.NewPoint("stream.decoder",
		map[string]string{
			"device": r.device.Name(),
		},
		map[string]interface{}{
			"bytes_ingested":   stats.BytesIngested,
			"frames_decoded":   stats.FramesDecoded,
			"decode_failures":  stats.DecodeFailures,
			"oversized_frames": stats.OversizedFrames,
			"sync_errors":      stats.SyncErrors,
			"dropped_sends":    stats.DroppedSends,
			"skipped_outputs":  skipped,
			"ingest_us":        ingestMicros,
			"mailbox_depth":    r.mailbox.Len(),
		}, time.Now()))
}
