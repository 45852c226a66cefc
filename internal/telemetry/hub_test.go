package telemetry

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(0, zap.NewNop())
	t.Cleanup(h.Close)
	return h
}

func subscribe(t *testing.T, h *Hub, lastEventID string) (*httptest.ResponseRecorder, context.CancelFunc, chan error) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/telemetry", nil)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Subscribe(ctx, rec, req.WithContext(ctx)) }()

	require.Eventually(t, func() bool { return h.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	return rec, cancel, errCh
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	h := newTestHub(t)
	rec, cancel, errCh := subscribe(t, h, "")

	h.Publish(TypeStateChanged, map[string]interface{}{"state": "ENABLED"})

	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body.String(), "event: stateChanged")
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	body := rec.Body.String()
	assert.Contains(t, body, "event: ready")
	assert.Contains(t, body, `"state":"ENABLED"`)
	assert.Contains(t, body, "id: 1")
}

func TestReplayFromLastEventID(t *testing.T) {
	h := newTestHub(t)
	h.Publish(TypeStarted, map[string]interface{}{"id": "ap-1"})
	h.Publish(TypeStopped, map[string]interface{}{"id": "ap-1"})
	h.Publish(TypeStarted, map[string]interface{}{"id": "ap-2"})

	rec, cancel, errCh := subscribe(t, h, "1")

	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body.String(), `"id":"ap-2"`)
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	body := rec.Body.String()
	assert.NotContains(t, body, "id: 1\n", "event 1 must not be replayed")
	assert.Contains(t, body, "id: 2")
	assert.Contains(t, body, "id: 3")
}

func TestBufferBounded(t *testing.T) {
	h := newTestHub(t)
	for i := 0; i < bufferCapacity+10; i++ {
		h.Publish(TypeHeartbeat, nil)
	}
	assert.LessOrEqual(t, len(h.replay(1)), bufferCapacity)
}

func TestCloseDetachesSubscribers(t *testing.T) {
	h := NewHub(0, zap.NewNop())
	_, cancel, errCh := subscribe(t, h, "")
	defer cancel()

	h.Close()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not detach on close")
	}
}
