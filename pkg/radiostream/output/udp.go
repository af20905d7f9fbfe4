package output

import (
	"context"
	"fmt"
	"net"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/radiostream/pkg/radiostream/config"
	"github.com/norasector/radiostream/pkg/stream"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
)

const (
	receiveChannels = 8
	numSenders      = 2
)

// UDPFrameOutput relays decoded messages to UDP destinations, one frame per datagram,
// using the same sync + length framing they arrived in.
type UDPFrameOutput struct {
	dests    []config.OutputDestination
	recvChan chan proto.Message
	metrics  api.WriteAPI
}

func NewUDPFrameOutput(dests []config.OutputDestination, metrics api.WriteAPI) *UDPFrameOutput {
	return &UDPFrameOutput{
		dests:    dests,
		recvChan: make(chan proto.Message, receiveChannels),
		metrics:  metrics,
	}
}

func (s *UDPFrameOutput) Receive() chan<- proto.Message {
	return s.recvChan
}

func (s *UDPFrameOutput) resolve() ([]*net.UDPAddr, error) {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("udp output starting")
	}
	return destAddrs, nil
}

func (s *UDPFrameOutput) Start(ctx context.Context) error {
	destAddrs, err := s.resolve()
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < numSenders; i++ {
		eg.Go(func() error {
			conn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-s.recvChan:
					if !ok {
						return nil
					}
					s.send(conn, destAddrs, msg)
				}
			}
		})
	}

	return eg.Wait()
}

func (s *UDPFrameOutput) send(conn *net.UDPConn, destAddrs []*net.UDPAddr, msg proto.Message) {
	frame, err := stream.MarshalFrame(msg)
	if err != nil {
		log.Warn().Err(err).Msg("error framing message")
		return
	}

	sent, dropped := 0, 0
	for _, destAddr := range destAddrs {
		if _, err := conn.WriteToUDP(frame, destAddr); err != nil {
			log.Error().Err(err).Str("dest", destAddr.String()).Msg("error writing")
			dropped++
			continue
		}
		sent++
	}

	s.metrics.WritePoint(influxdb2.NewPoint("stream.udp_output",
		map[string]string{
			"type": string(msg.ProtoReflect().Descriptor().FullName()),
		},
		map[string]interface{}{
			"frame_length": len(frame),
			"sent":         sent,
			"dropped":      dropped,
		}, time.Now()))
}
