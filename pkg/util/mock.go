package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI discards everything; it stands in when no influx host is configured.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }

// RecordingWriteAPI keeps written points in memory. It is shared test scaffolding
// for packages that assert on metrics; it grows without bound, so never wire it
// into a running receiver.
type RecordingWriteAPI struct {
	MockWriteAPI

	mu     sync.Mutex
	points []*write.Point
}

func (m *RecordingWriteAPI) WritePoint(point *write.Point) {
	m.mu.Lock()
	m.points = append(m.points, point)
	m.mu.Unlock()
}

// Points returns every point written so far with the given measurement name.
func (m *RecordingWriteAPI) Points(measurement string) []*write.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*write.Point
	for _, p := range m.points {
		if p.Name() == measurement {
			out = append(out, p)
		}
	}
	return out
}
