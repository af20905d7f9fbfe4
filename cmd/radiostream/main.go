package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/radiostream/pkg/radiostream"
	"github.com/norasector/radiostream/pkg/radiostream/config"
	"github.com/norasector/radiostream/pkg/radiostream/device"
	"github.com/norasector/radiostream/pkg/radiostream/device/file"
	"github.com/norasector/radiostream/pkg/radiostream/device/tcp"
	"github.com/norasector/radiostream/pkg/radiostream/output"
	"github.com/norasector/radiostream/pkg/radiostream/schema"
	"github.com/norasector/radiostream/pkg/radiostream/status"
	"github.com/norasector/radiostream/pkg/util"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "radiostream.yaml", "YAML config file")
	debug := flag.Bool("debug", false, "log resync and decode failures")

	flag.Parse()
	if *debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config")
	}

	newMessage, err := schema.Resolve(opts.DescriptorSet, opts.MessageType)
	if err != nil {
		log.Fatal().Err(err).Msg("error resolving message type")
	}

	var dev device.Device
	switch opts.Device {
	case "file":
		log.Info().Str("device", "file").Str("path", opts.PlaybackLocation).Msg("initializing device...")
		dev, err = file.NewFileDevice(opts.PlaybackLocation, opts.ReadSize, opts.ReadDelay)
		if err != nil {
			log.Fatal().Str("device", "file").Err(err).Msg("failed to init file reader")
		}
	default:
		log.Info().Str("device", "tcp").Str("host", opts.TCP.Host).Msg("initializing device...")
		dev = tcp.NewTCPDevice(opts.TCP.Host, opts.TCP.Port, opts.TCP.DialTimeout)
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, "")
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	var outputs []radiostream.Output
	if opts.LogMessages {
		outputs = append(outputs, output.NewLogOutput(log.Logger))
	}
	if len(opts.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewUDPFrameOutput(opts.OutputDestinations, writeAPI))
	}

	receiverOpts := []radiostream.ReceiverOption{
		radiostream.WithLogger(log.Logger),
		radiostream.WithInfluxDB(writeAPI),
	}
	if opts.StatusServer.Port != 0 {
		receiverOpts = append(receiverOpts,
			radiostream.WithStatusServer(status.NewServer(opts.StatusServer.Port, opts.StatusServer.History)))
	}

	receiver, err := radiostream.NewReceiver(dev, radiostream.Options{
		MessageFactory:  newMessage,
		Outputs:         outputs,
		MetricsInterval: opts.MetricsInterval,
	}, receiverOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receiver")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return receiver.Stop()
	})

	eg.Go(func() error {
		return receiver.Start(ctx)
	})

	err = eg.Wait()
	switch {
	case errors.Is(err, device.ErrStreamEnded):
		s := receiver.Stats()
		log.Info().
			Uint64("frames_decoded", s.FramesDecoded).
			Uint64("decode_failures", s.DecodeFailures).
			Msg("stream ended")
	case err != nil && !errors.Is(err, context.Canceled):
		log.Fatal().Err(err).Msg("exited program")
	}
}
