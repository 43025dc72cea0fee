// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/wjensen/x32-scene-monitor/internal/console"
	"github.com/wjensen/x32-scene-monitor/internal/monitor"
	"github.com/wjensen/x32-scene-monitor/internal/osc"
)

// HistoryReader reads back persisted apply cycles for clients.
type HistoryReader interface {
	RecentCycles(limit int) ([]monitor.CycleRecord, error)
}

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	conn     *console.Conn
	pipeline *monitor.Pipeline
	history  HistoryReader
	mu       sync.RWMutex
	clients  map[string]*socket.Socket
}

// NewServer creates a new Socket.io server.
func NewServer(conn *console.Conn, pipeline *monitor.Pipeline, history HistoryReader) (*Server, error) {
	// Configure Socket.io server options
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:       server,
		conn:     conn,
		pipeline: pipeline,
		history:  history,
		clients:  make(map[string]*socket.Socket),
	}

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		log.Info().Str("id", clientID).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial status after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushStatus(client)
		}()

		// Handle disconnect
		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getStatus", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getStatus")
			s.pushStatus(client)
		})

		client.On("applyNow", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("applyNow")
			go func() {
				if _, err := s.pipeline.Run(); err != nil {
					log.Error().Err(err).Msg("Apply cycle failed")
				}
			}()
		})

		client.On("getHistory", func(args ...any) {
			limit := 20
			if len(args) > 0 {
				if m, ok := args[0].(map[string]interface{}); ok {
					if v, ok := m["limit"].(float64); ok {
						limit = int(v)
					}
				}
			}
			log.Debug().Str("id", clientID).Int("limit", limit).Msg("getHistory")
			s.pushHistory(client, limit)
		})

		client.On("getMeters", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getMeters")
			if frame := s.conn.LatestMeter(); frame != nil {
				client.Emit("pushMeters", meterPayload(frame))
			}
		})
	})
}

// pushStatus sends current console and pipeline status to a client.
func (s *Server) pushStatus(client *socket.Socket) {
	client.Emit("pushStatus", s.statusPayload())
}

func (s *Server) statusPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"console": s.conn.State(),
		"stats":   s.conn.Stats(),
	}
	if snap := s.pipeline.LastSnapshot(); snap != nil {
		payload["sceneParameters"] = snap.Len()
	}
	return payload
}

// pushHistory sends recent apply cycles to a client.
func (s *Server) pushHistory(client *socket.Socket, limit int) {
	if s.history == nil {
		client.Emit("pushHistory", []monitor.CycleRecord{})
		return
	}
	recs, err := s.history.RecentCycles(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read cycle history")
		return
	}
	if recs == nil {
		recs = []monitor.CycleRecord{}
	}
	client.Emit("pushHistory", recs)
}

// NotifyCycle broadcasts the outcome of an apply cycle to all connected
// clients. Implements monitor.Notifier.
func (s *Server) NotifyCycle(rec monitor.CycleRecord) {
	s.io.Emit("pushApplyResult", rec)
	s.io.Emit("pushStatus", s.statusPayload())

	if log.Debug().Enabled() {
		data, _ := json.Marshal(rec)
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().RawJSON("cycle", data).Int("clients", clientCount).Msg("Broadcast apply result")
	}
}

// StartMeterForwarder forwards decoded meter frames to all connected
// clients until the context is cancelled.
func (s *Server) StartMeterForwarder(ctx context.Context) {
	frames := s.conn.SubscribeMeters()

	go func() {
		log.Info().Msg("Meter forwarder started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Meter forwarder stopped")
				return
			case frame, ok := <-frames:
				if !ok {
					log.Warn().Msg("Meter channel closed")
					return
				}
				s.io.Emit("pushMeters", meterPayload(frame))
			}
		}
	}()
}

// meterPayload converts a meter frame into the three-bank wire payload.
func meterPayload(f *osc.MeterFrame) map[string]interface{} {
	input := make([]float32, osc.MeterBankSize)
	gate := make([]float32, osc.MeterBankSize)
	dynamics := make([]float32, osc.MeterBankSize)
	for i := 0; i < osc.MeterBankSize; i++ {
		input[i] = f.Input(i)
		gate[i] = f.Gate(i)
		dynamics[i] = f.Dynamics(i)
	}
	return map[string]interface{}{
		"input":    input,
		"gate":     gate,
		"dynamics": dynamics,
	}
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.io.Close(nil)
	return nil
}
