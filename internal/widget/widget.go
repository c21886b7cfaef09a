// Package widget implements the §6 widget-channel ingress: a gorilla/websocket
// server that accepts the browser widget's track/ping/intervention_outcome
// frames and pushes track_ack/intervention frames back, grounded
// on the teacher's internal/websocket.DAGStreamer register/unregister/
// broadcast hub shape. Unlike DAGStreamer's single global fan-out, each
// connection here subscribes to internal/broadcast's "widget" channel
// filtered to its own sessionId, since the widget protocol is
// per-session, not a shared visualization feed.
package widget

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ava/internal/broadcast"
	"ava/internal/core"
	"ava/internal/outcome"
	"ava/internal/repo"
	"ava/internal/session"
)

// Ingestor is the subset of session.Manager the widget server drives.
type Ingestor interface {
	Ingest(ctx context.Context, s core.Session, event core.TrackEvent)
}

var _ Ingestor = (*session.Manager)(nil)

// Server upgrades widget connections and bridges them to the session
// evaluator and the broadcast hub.
type Server struct {
	Sessions  repo.SessionRepo
	Manager   Ingestor
	Outcomes  *outcome.Recorder
	Broadcast *broadcast.Hub

	Now func() time.Time

	upgrader websocket.Upgrader
}

// NewServer constructs a widget server. CheckOrigin is permissive by
// default, matching the teacher's dev-mode DAGStreamer upgrader; a reverse
// proxy or CDN is expected to enforce origin policy in front of this.
func NewServer(sessions repo.SessionRepo, mgr Ingestor, outcomes *outcome.Recorder, hub *broadcast.Hub) *Server {
	return &Server{
		Sessions:  sessions,
		Manager:   mgr,
		Outcomes:  outcomes,
		Broadcast: hub,
		Now:       time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// inboundViewport mirrors §6's page_context.viewport shape.
type inboundViewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// inboundPageContext mirrors §6's track event page_context shape.
type inboundPageContext struct {
	PageType       string           `json:"page_type"`
	PageURL        string           `json:"page_url"`
	TimeOnPageMs   int64            `json:"time_on_page_ms"`
	ScrollDepthPct float64          `json:"scroll_depth_pct"`
	Viewport       inboundViewport  `json:"viewport"`
	Device         string           `json:"device"`
}

// inboundEvent mirrors §6's track event shape.
type inboundEvent struct {
	EventID     string                 `json:"event_id"`
	FrictionID  string                 `json:"friction_id,omitempty"`
	Category    string                 `json:"category"`
	EventType   string                 `json:"event_type"`
	RawSignals  map[string]interface{} `json:"raw_signals,omitempty"`
	PageContext inboundPageContext     `json:"page_context"`
	Timestamp   time.Time              `json:"timestamp"`
}

// inboundMessage is the union of every message shape the widget channel
// accepts, per §6: track, ping, intervention_outcome.
type inboundMessage struct {
	Type string `json:"type"`

	// track
	VisitorKey      string       `json:"visitorKey"`
	SessionKey      string       `json:"sessionKey"`
	SiteURL         string       `json:"siteUrl"`
	DeviceType      string       `json:"deviceType"`
	ReferrerType    string       `json:"referrerType"`
	IsLoggedIn      bool         `json:"isLoggedIn"`
	IsRepeatVisitor bool         `json:"isRepeatVisitor"`
	Event           inboundEvent `json:"event"`

	// intervention_outcome
	InterventionID   string  `json:"intervention_id"`
	SessionID        string  `json:"session_id"`
	Status           string  `json:"status"`
	ConversionAction *string `json:"conversion_action,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// outboundFrame is the envelope every server-pushed message uses.
type outboundFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type trackAckData struct {
	SessionID string `json:"sessionId"`
}

// ServeWS upgrades the request and runs the connection's read/write loops
// until the client disconnects.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("widget: upgrade failed", "error", err)
		return
	}

	c := &connState{server: s, conn: conn}
	defer c.close()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handle(r.Context(), msg)
	}
}

// connState is the per-connection state: at most one session is bound to a
// connection, since the widget opens one socket per page/session.
type connState struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	acked     bool
	sub       *broadcast.Subscription
}

func (c *connState) handle(ctx context.Context, msg inboundMessage) {
	switch msg.Type {
	case "track":
		c.handleTrack(ctx, msg)
	case "ping":
		// No-op: the read loop itself is the liveness signal.
	case "intervention_outcome":
		c.handleOutcome(ctx, msg)
	default:
		slog.Warn("widget: unrecognized message type", "type", msg.Type)
	}
}

func (c *connState) handleTrack(ctx context.Context, msg inboundMessage) {
	sess, err := c.server.findOrCreateSession(ctx, msg)
	if err != nil {
		slog.Error("widget: session lookup/create failed", "error", err)
		return
	}

	event := core.TrackEvent{
		ID:             msg.Event.EventID,
		SessionID:      sess.SessionID,
		Timestamp:      msg.Event.Timestamp,
		Category:       core.EventCategory(msg.Event.Category),
		EventType:      msg.Event.EventType,
		PageType:       core.PageType(msg.Event.PageContext.PageType),
		RawSignals:     msg.Event.RawSignals,
		FrictionID:     msg.Event.FrictionID,
		PageURL:        msg.Event.PageContext.PageURL,
		ScrollDepthPct: msg.Event.PageContext.ScrollDepthPct,
		TimeOnPageMs:   msg.Event.PageContext.TimeOnPageMs,
		DeviceType:     sess.DeviceType,
		ReferrerType:   sess.ReferrerType,
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.server.now()
	}

	c.server.Manager.Ingest(ctx, sess, event)

	c.mu.Lock()
	firstTrack := !c.acked
	c.acked = true
	if c.sessionID == "" {
		c.sessionID = sess.SessionID
		c.sub = c.server.Broadcast.Subscribe(broadcast.ChannelWidget, sess.SessionID)
		go c.pump(c.sub)
	}
	c.mu.Unlock()

	if firstTrack {
		c.writeJSON(outboundFrame{Type: "track_ack", Data: trackAckData{SessionID: sess.SessionID}})
	}
}

func (c *connState) handleOutcome(ctx context.Context, msg inboundMessage) {
	if c.server.Outcomes == nil {
		return
	}
	status := core.InterventionStatus(msg.Status)
	err := c.server.Outcomes.Record(ctx, core.OutcomeMessage{
		InterventionID:   msg.InterventionID,
		SessionID:        msg.SessionID,
		Status:           status,
		ConversionAction: msg.ConversionAction,
		Timestamp:        msg.Timestamp,
	})
	if err != nil {
		slog.Warn("widget: failed to record intervention outcome", "intervention_id", msg.InterventionID, "error", err)
	}
}

// pump forwards every frame the broadcast hub delivers on this connection's
// subscription out over the websocket, until the subscription is closed.
func (c *connState) pump(sub *broadcast.Subscription) {
	for frame := range sub.C {
		c.writeJSON(outboundFrame{Type: frame.Type, Data: frame.Data})
	}
}

// writeJSON serializes a write under a mutex, since gorilla/websocket
// connections do not support concurrent writers.
func (c *connState) writeJSON(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		slog.Warn("widget: write failed", "error", err)
	}
}

func (c *connState) close() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
	c.conn.Close()
}

// findOrCreateSession resolves the (visitorKey, sessionKey) pair to a
// Session row, creating and upserting a new one on first contact.
func (s *Server) findOrCreateSession(ctx context.Context, msg inboundMessage) (core.Session, error) {
	existing, ok, err := s.Sessions.LookupBy(ctx, msg.VisitorKey, msg.SessionKey)
	if err != nil {
		return core.Session{}, err
	}
	if ok {
		existing.LastSeenAt = s.now()
		existing.Status = core.SessionActive
		if err := s.Sessions.Upsert(ctx, existing); err != nil {
			return core.Session{}, err
		}
		return existing, nil
	}

	now := s.now()
	sess := core.Session{
		SessionID:       uuid.New().String(),
		VisitorKey:      msg.VisitorKey,
		SessionKey:      msg.SessionKey,
		SiteURL:         msg.SiteURL,
		StartedAt:       now,
		LastSeenAt:      now,
		Status:          core.SessionActive,
		DeviceType:      core.DeviceType(msg.DeviceType),
		ReferrerType:    msg.ReferrerType,
		IsLoggedIn:      msg.IsLoggedIn,
		IsRepeatVisitor: msg.IsRepeatVisitor,
	}
	if err := s.Sessions.Upsert(ctx, sess); err != nil {
		return core.Session{}, err
	}
	return sess, nil
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
