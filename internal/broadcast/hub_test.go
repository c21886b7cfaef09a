package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastToChannel_DeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	subA := h.Subscribe(ChannelDashboard, "")
	subB := h.Subscribe(ChannelDashboard, "")
	defer subA.Close()
	defer subB.Close()

	h.BroadcastToChannel(ChannelDashboard, Frame{Type: "evaluation"})

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case f := <-sub.C:
			assert.Equal(t, "evaluation", f.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestHub_BroadcastToChannelForSession_FiltersBySessionID(t *testing.T) {
	h := NewHub()
	subMatching := h.Subscribe(ChannelWidget, "sess-1")
	subOther := h.Subscribe(ChannelWidget, "sess-2")
	defer subMatching.Close()
	defer subOther.Close()

	h.BroadcastToChannelForSession(ChannelWidget, "sess-1", Frame{Type: "intervention"})

	select {
	case f := <-subMatching.C:
		assert.Equal(t, "intervention", f.Type)
	case <-time.After(time.Second):
		t.Fatal("expected matching subscriber to receive frame")
	}

	select {
	case <-subOther.C:
		t.Fatal("non-matching subscriber should not receive frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe_RemovesSubscriberAndClosesChannel(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(ChannelDemo, "")
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	require.Equal(t, 0, h.SubscriberCount())
}
