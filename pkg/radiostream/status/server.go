package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/norasector/radiostream/pkg/stream"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Server exposes decoder stats and the most recently decoded messages over HTTP.
type Server struct {
	mu      sync.RWMutex
	stats   stream.Stats
	history []proto.Message
	next    int
	full    bool
	srv     *http.Server
}

func NewServer(port int, history int) *Server {
	s := &Server{
		history: make([]proto.Message, history),
		srv:     &http.Server{Addr: fmt.Sprintf(":%d", port)},
	}
	s.srv.Handler = s.Handler()
	return s
}

func (s *Server) UpdateStats(stats stream.Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// Record adds msg to the history ring, evicting the oldest entry when full.
func (s *Server) Record(msg proto.Message) {
	if len(s.history) == 0 {
		return
	}
	s.mu.Lock()
	s.history[s.next] = msg
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()
}

// Recent returns recorded messages oldest first.
func (s *Server) Recent() []proto.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.full {
		return append([]proto.Message(nil), s.history[:s.next]...)
	}
	out := make([]proto.Message, 0, len(s.history))
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/stats", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		stats := s.stats
		s.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Warn().Err(err).Msg("error writing stats")
		}
	})

	handler.GET("/messages", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		recent := s.Recent()
		encoded := make([]json.RawMessage, 0, len(recent))
		for _, msg := range recent {
			b, err := protojson.Marshal(msg)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			encoded = append(encoded, b)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(encoded); err != nil {
			log.Warn().Err(err).Msg("error writing messages")
		}
	})

	return handler
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.srv.Shutdown(context.Background())
	}()

	log.Info().Str("addr", s.srv.Addr).Msg("status server starting")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
