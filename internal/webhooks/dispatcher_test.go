package webhooks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetSubscribersFiltersByEvent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&WebhookSubscription{URL: "http://a", Events: []EventType{EventDriftAlertRaised}}))
	require.NoError(t, r.Register(&WebhookSubscription{URL: "http://b", Events: []EventType{EventRolloutStarted}}))

	subs := r.GetSubscribers(EventDriftAlertRaised)
	require.Len(t, subs, 1)
	assert.Equal(t, "http://a", subs[0].URL)
}

func TestRegistryMarkFailedDisablesAfterTenFailures(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&WebhookSubscription{ID: "wh-1", URL: "http://a", Events: []EventType{EventJobRunFailed}}))

	for i := 0; i < 9; i++ {
		r.MarkFailed("wh-1")
	}
	assert.Len(t, r.GetSubscribers(EventJobRunFailed), 1, "still active below the failure threshold")

	r.MarkFailed("wh-1")
	assert.Len(t, r.GetSubscribers(EventJobRunFailed), 0, "disabled once failures reach 10")
}

func TestDispatcherEmitDeliversSignedPayloadToScopedSubscriber(t *testing.T) {
	var mu sync.Mutex
	var gotBody WebhookEvent
	var gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSig = r.Header.Get("X-AVA-Signature")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := NewRegistry()
	require.NoError(t, registry.Register(&WebhookSubscription{
		URL:     srv.URL,
		Events:  []EventType{EventDriftAlertRaised},
		Secret:  "s3cr3t",
		SiteURL: "shop.example.com",
	}))

	d := NewDispatcher(registry, 2)
	defer d.Shutdown()

	d.Emit(EventDriftAlertRaised, "shop.example.com", map[string]interface{}{"alert_id": "a1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotBody.ID != ""
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventDriftAlertRaised, gotBody.Type)
	assert.Equal(t, "shop.example.com", gotBody.SiteURL)
	assert.NotEmpty(t, gotSig)
}

func TestDispatcherEmitSkipsSubscriberScopedToOtherSite(t *testing.T) {
	delivered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := NewRegistry()
	require.NoError(t, registry.Register(&WebhookSubscription{
		URL:     srv.URL,
		Events:  []EventType{EventRolloutStarted},
		SiteURL: "other.example.com",
	}))

	d := NewDispatcher(registry, 2)
	defer d.Shutdown()

	d.Emit(EventRolloutStarted, "shop.example.com", nil)

	select {
	case <-delivered:
		t.Fatal("webhook delivered to a subscriber scoped to a different site")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSignPayloadIsDeterministic(t *testing.T) {
	sig1 := SignPayload([]byte(`{"a":1}`), "secret")
	sig2 := SignPayload([]byte(`{"a":1}`), "secret")
	assert.Equal(t, sig1, sig2)

	sig3 := SignPayload([]byte(`{"a":2}`), "secret")
	assert.NotEqual(t, sig1, sig3)
}
