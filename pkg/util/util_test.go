package util

import (
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingWriteAPIPoints(t *testing.T) {
	m := &RecordingWriteAPI{}
	m.WritePoint(influxdb2.NewPoint("stream.decoder", nil, map[string]interface{}{"frames_decoded": 3}, time.Now()))
	m.WritePoint(influxdb2.NewPoint("stream.output", nil, map[string]interface{}{"sent": 1}, time.Now()))

	points := m.Points("stream.decoder")
	require.Len(t, points, 1)

	v, ok := FieldValue(points[0], "frames_decoded")
	require.True(t, ok)
	assert.EqualValues(t, 3, v)

	_, ok = FieldValue(points[0], "missing")
	assert.False(t, ok)
}

func TestTimeOperationMicroseconds(t *testing.T) {
	us := TimeOperationMicroseconds(func() { time.Sleep(2 * time.Millisecond) })
	assert.GreaterOrEqual(t, us, int64(2000))
}
