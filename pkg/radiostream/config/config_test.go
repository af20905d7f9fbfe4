package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
device: tcp
tcp:
  host: meshtastic.local
  dial_timeout: 3s
descriptor_set: meshtastic.pb
message_type: meshtastic.FromRadio
output_destinations:
  - host: 127.0.0.1
    port: 9000
log_messages: true
metrics_interval: 30s
status_server:
  port: 8080
influxdb:
  host: http://localhost:8086
  organization: radio
  bucket: stream
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "tcp", c.Device)
	assert.Equal(t, "meshtastic.local", c.TCP.Host)
	assert.Equal(t, DefaultTCPPort, c.TCP.Port)
	assert.Equal(t, 3*time.Second, c.TCP.DialTimeout)
	assert.Equal(t, "meshtastic.FromRadio", c.MessageType)
	assert.Equal(t, []OutputDestination{{Host: "127.0.0.1", Port: 9000}}, c.OutputDestinations)
	assert.True(t, c.LogMessages)
	assert.Equal(t, 30*time.Second, c.MetricsInterval)
	assert.Equal(t, 8080, c.StatusServer.Port)
	assert.Equal(t, DefaultHistory, c.StatusServer.History)
	assert.Equal(t, "stream", c.InfluxDB.Bucket)
	assert.Equal(t, DefaultReadSize, c.ReadSize)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"tcp without host", "device: tcp\n"},
		{"empty defaults to tcp", ""},
		{"unknown device", "device: ble\n"},
		{"bad yaml", "device: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlayback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radiostream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("playback_location: capture.bin\nread_delay: 5ms\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", c.Device)
	assert.Equal(t, 5*time.Millisecond, c.ReadDelay)
	assert.Equal(t, DefaultMessage, c.MessageType)
}

func TestParseExplicitDeviceWins(t *testing.T) {
	c, err := Parse([]byte("device: tcp\ntcp:\n  host: radio.local\nplayback_location: capture.bin\n"))
	require.NoError(t, err)
	assert.Equal(t, "tcp", c.Device)
	assert.Equal(t, "capture.bin", c.PlaybackLocation)
}
