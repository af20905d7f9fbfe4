package output

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/norasector/radiostream/pkg/radiostream/config"
	"github.com/norasector/radiostream/pkg/stream"
	"github.com/norasector/radiostream/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type lineWriter chan []byte

func (w lineWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	w <- line
	return len(p), nil
}

func TestLogOutput(t *testing.T) {
	lines := make(lineWriter, 4)
	out := NewLogOutput(zerolog.New(lines))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go out.Start(ctx)

	out.Receive() <- wrapperspb.String("logged")

	select {
	case line := <-lines:
		var entry struct {
			Type    string          `json:"type"`
			Message json.RawMessage `json:"message"`
		}
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, "google.protobuf.StringValue", entry.Type)
		assert.JSONEq(t, `"logged"`, string(entry.Message))
	case <-time.After(time.Second):
		t.Fatal("no log line written")
	}
}

func TestUDPFrameOutput(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	metrics := &util.RecordingWriteAPI{}
	out := NewUDPFrameOutput([]config.OutputDestination{{
		Host: "127.0.0.1",
		Port: listener.LocalAddr().(*net.UDPAddr).Port,
	}}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go out.Start(ctx)

	want := wrapperspb.String("relayed")
	out.Receive() <- want

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	mb := stream.NewMailbox()
	dec := stream.NewFrameDecoder(mb, func() proto.Message { return &wrapperspb.StringValue{} })
	dec.Ingest(buf[:n])

	got, ok := mb.TryRecv()
	require.True(t, ok)
	assert.True(t, proto.Equal(want, got))

	assert.Eventually(t, func() bool {
		return len(metrics.Points("stream.udp_output")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUDPFrameOutputBadHost(t *testing.T) {
	out := NewUDPFrameOutput([]config.OutputDestination{{Host: "invalid.invalid", Port: 1}}, &util.MockWriteAPI{})
	assert.Error(t, out.Start(context.Background()))
}

func TestLogOutputDrainsOnClose(t *testing.T) {
	lines := make(lineWriter, 8)
	out := NewLogOutput(zerolog.New(lines))
	for _, v := range []string{"a", "b", "c"} {
		out.Receive() <- wrapperspb.String(v)
	}
	close(out.Receive())

	require.NoError(t, out.Start(context.Background()))
	assert.Len(t, lines, 3)
}
