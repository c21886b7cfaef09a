// Package dashboard implements the §6 dashboard channel: a read-only
// go-socket.io push server relaying track_event/evaluation/intervention/
// onboarding_progress frames, grounded on the teacher's cmd/probe "Synapse
// Bridge" (socketio.NewServer + BroadcastToNamespace). Unlike the probe's
// single traffic_event stream, this bridges internal/broadcast's
// "dashboard" channel, so the server has no state of its own beyond the
// hub subscription.
package dashboard

import (
	"log/slog"
	"net/http"

	socketio "github.com/googollee/go-socket.io"

	"ava/internal/broadcast"
)

// Server relays every frame published on the broadcast hub's "dashboard"
// channel to connected Socket.IO clients on the "/" namespace.
type Server struct {
	io  *socketio.Server
	hub *broadcast.Hub
	sub *broadcast.Subscription
}

// NewServer constructs the Socket.IO server and wires its connect/
// disconnect lifecycle logging, matching the teacher's OnConnect/
// OnDisconnect no-op-body style.
func NewServer(hub *broadcast.Hub) *Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		slog.Info("dashboard: client connected", "id", s.ID())
		return nil
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		slog.Info("dashboard: client disconnected", "id", s.ID(), "reason", reason)
	})
	io.OnError("/", func(s socketio.Conn, err error) {
		slog.Warn("dashboard: socket.io error", "error", err)
	})

	return &Server{io: io, hub: hub}
}

// Handler returns the HTTP handler to mount at /socket.io/.
func (s *Server) Handler() http.Handler {
	return s.io
}

// Start runs the Socket.IO server loop and begins relaying broadcast-hub
// frames on the "dashboard" channel until Stop is called.
func (s *Server) Start() {
	s.sub = s.hub.Subscribe(broadcast.ChannelDashboard, "")
	go s.relay()
	go func() {
		if err := s.io.Serve(); err != nil {
			slog.Warn("dashboard: socket.io server stopped", "error", err)
		}
	}()
}

// Stop closes the hub subscription and the underlying Socket.IO server.
func (s *Server) Stop() {
	if s.sub != nil {
		s.sub.Close()
	}
	s.io.Close()
}

// relay forwards every dashboard-channel frame as a Socket.IO event named
// after the frame's type (track_event, evaluation, intervention,
// onboarding_progress per §6), broadcast to every connected client.
func (s *Server) relay() {
	for frame := range s.sub.C {
		s.io.BroadcastToNamespace("/", frame.Type, frame.Data)
	}
}
