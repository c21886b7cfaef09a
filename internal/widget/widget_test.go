package widget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/broadcast"
	"ava/internal/core"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	bySessionKey map[string]core.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{bySessionKey: map[string]core.Session{}}
}

func (f *fakeSessionRepo) Upsert(ctx context.Context, s core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bySessionKey[s.SessionKey] = s
	return nil
}

func (f *fakeSessionRepo) LookupBy(ctx context.Context, visitorKey, sessionKey string) (core.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.bySessionKey[sessionKey]
	return s, ok, nil
}

func (f *fakeSessionRepo) ListSince(ctx context.Context, siteURL string, since time.Time) ([]core.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) MarkEnded(ctx context.Context, sessionID string) error { return nil }
func (f *fakeSessionRepo) UpdateCounters(ctx context.Context, sessionID string, counters core.SessionRunningCounters) error {
	return nil
}

type recordingIngestor struct {
	mu     sync.Mutex
	events []core.TrackEvent
}

func (r *recordingIngestor) Ingest(ctx context.Context, s core.Session, event core.TrackEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingIngestor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeSessionRepo, *recordingIngestor, *broadcast.Hub) {
	t.Helper()
	sessions := newFakeSessionRepo()
	ingestor := &recordingIngestor{}
	hub := broadcast.NewHub()

	srv := NewServer(sessions, ingestor, nil, hub)
	srv.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	mux.HandleFunc("/widget", srv.ServeWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts, sessions, ingestor, hub
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/widget"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTrackSendsAckAndIngestsEvent(t *testing.T) {
	ts, _, ingestor, _ := newTestServer(t)
	conn := dial(t, ts)

	msg := inboundMessage{
		Type:       "track",
		VisitorKey: "visitor-1",
		SessionKey: "session-1",
		SiteURL:    "shop.example.com",
		DeviceType: "mobile",
		Event: inboundEvent{
			EventID:   "ev-1",
			Category:  "page_view",
			EventType: "view",
			PageContext: inboundPageContext{
				PageType: "checkout",
			},
		},
	}
	require.NoError(t, conn.WriteJSON(msg))

	var ack outboundFrame
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "track_ack", ack.Type)

	assert.Eventually(t, func() bool { return ingestor.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSecondTrackDoesNotReAck(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	conn := dial(t, ts)

	track := func(eventID string) {
		require.NoError(t, conn.WriteJSON(inboundMessage{
			Type:       "track",
			VisitorKey: "visitor-1",
			SessionKey: "session-1",
			SiteURL:    "shop.example.com",
			Event:      inboundEvent{EventID: eventID, Category: "page_view", EventType: "view"},
		}))
	}

	track("ev-1")
	var ack outboundFrame
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "track_ack", ack.Type)

	track("ev-2")
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var second outboundFrame
	err := conn.ReadJSON(&second)
	assert.Error(t, err, "expected no second track_ack within the deadline")
}

func TestWidgetChannelFrameIsForwardedToSession(t *testing.T) {
	ts, _, _, hub := newTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type:       "track",
		VisitorKey: "visitor-1",
		SessionKey: "session-1",
		SiteURL:    "shop.example.com",
		Event:      inboundEvent{EventID: "ev-1", Category: "page_view", EventType: "view"},
	}))
	var ack outboundFrame
	require.NoError(t, conn.ReadJSON(&ack))

	assert.Eventually(t, func() bool {
		hub.BroadcastToChannelForSession(broadcast.ChannelWidget, ack.Data.(map[string]interface{})["sessionId"].(string),
			broadcast.Frame{Type: "intervention", Data: map[string]interface{}{"interventionId": "iv-1"}})
		return true
	}, time.Second, 5*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var pushed outboundFrame
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "intervention", pushed.Type)
}
