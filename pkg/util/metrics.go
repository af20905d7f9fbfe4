package util

import (
	"time"

	"github.com/influxdata/influxdb-client-go/api/write"
)

func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}

// FieldValue returns the value of the named field of p, if present. Only tests
// read points back, together with RecordingWriteAPI.
func FieldValue(p *write.Point, key string) (interface{}, bool) {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}
