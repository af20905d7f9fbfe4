package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/norasector/radiostream/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestServerRecentRing(t *testing.T) {
	tests := []struct {
		name    string
		history int
		records int
		want    []string
	}{
		{"empty", 3, 0, nil},
		{"partial", 3, 2, []string{"0", "1"}},
		{"exactly full", 3, 3, []string{"0", "1", "2"}},
		{"wrapped", 3, 5, []string{"2", "3", "4"}},
		{"disabled", 0, 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, tt.history)
			for i := 0; i < tt.records; i++ {
				s.Record(wrapperspb.String(string(rune('0' + i))))
			}

			var got []string
			for _, msg := range s.Recent() {
				got = append(got, msg.(*wrapperspb.StringValue).GetValue())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerStats(t *testing.T) {
	s := NewServer(0, 4)
	s.UpdateStats(stream.Stats{FramesDecoded: 7, SyncErrors: 2})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got stream.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(7), got.FramesDecoded)
	assert.Equal(t, uint64(2), got.SyncErrors)
}

func TestServerMessages(t *testing.T) {
	s := NewServer(0, 4)
	for _, v := range []string{"a", "b"} {
		s.Record(wrapperspb.String(v))
	}
	s.Record(&wrapperspb.Int32Value{Value: 5})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["a","b",5]`, rec.Body.String())
}

func TestServerUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(0, 1).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
