package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/audit"
	"github.com/radio-control/sapd/internal/auth"
	"github.com/radio-control/sapd/internal/config"
	"github.com/radio-control/sapd/internal/hal/fake"
	"github.com/radio-control/sapd/internal/telemetry"
)

type testServer struct {
	server  *Server
	session *Session
	driver  *fake.Driver
}

func newTestServer(t *testing.T, verifier *auth.Verifier) *testServer {
	t.Helper()
	d := &fake.Driver{}
	hub := telemetry.NewHub(0, zap.NewNop())
	t.Cleanup(hub.Close)
	auditLog, err := audit.NewLogger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	session := NewSession(d, config.Baseline(), hub, auditLog, nil, zap.NewNop())
	return &testServer{
		server:  NewServer(session, hub, verifier, zap.NewNop()),
		session: session,
		driver:  d,
	}
}

func startPayload() map[string]interface{} {
	return map[string]interface{}{
		"config": map[string]interface{}{
			"ssid":       "lab",
			"security":   int(ap.SecurityWPA2PSK),
			"passphrase": "hunter22",
			"bands":      []int{int(ap.Band2GHz | ap.Band5GHz)},
		},
		"capability": map[string]interface{}{
			"channels":   map[string][]int{"2.4GHz": {1, 6, 11}, "5GHz": {36, 40}},
			"maxClients": 8,
			"features":   uint32(ap.FeatureClientForceDisconnect),
		},
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CorrelationID)
	return resp
}

func TestHealthNoAuth(t *testing.T) {
	v, err := auth.NewVerifier("secret")
	require.NoError(t, err)
	ts := newTestServer(t, v)

	rec := doJSON(t, ts.server, "GET", "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeEnvelope(t, rec).Result)
}

func TestStartStopFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doJSON(t, ts.server, "POST", "/api/v1/ap/start", startPayload(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Wait for the machine to come up before asserting status.
	require.Eventually(t, func() bool {
		st, ok := ts.session.Status()
		return ok && st.State == ap.StateEnabled
	}, time.Second, 5*time.Millisecond)

	rec = doJSON(t, ts.server, "GET", "/api/v1/ap/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":2`) // ENABLED

	// A second start while running conflicts.
	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/start", startPayload(), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_RUNNING", decodeEnvelope(t, rec).Code)

	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/stop", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		st, _ := ts.session.Status()
		return st.State == ap.StateDisabled
	}, time.Second, 5*time.Millisecond)

	// Stop without a live machine conflicts.
	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/stop", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_RUNNING", decodeEnvelope(t, rec).Code)
}

func TestStartValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	payload := startPayload()
	payload["config"].(map[string]interface{})["ssid"] = ""
	rec := doJSON(t, ts.server, "POST", "/api/v1/ap/start", payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CONFIG", decodeEnvelope(t, rec).Code)

	payload = startPayload()
	payload["capability"].(map[string]interface{})["channels"] = map[string][]int{"7GHz": {1}}
	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/start", payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CAPABILITY", decodeEnvelope(t, rec).Code)
}

func TestControlEndpointsRequireControllerScope(t *testing.T) {
	v, err := auth.NewVerifier("secret")
	require.NoError(t, err)
	ts := newTestServer(t, v)

	viewer, err := v.IssueToken("viewer-1", auth.ScopeViewer, time.Minute)
	require.NoError(t, err)
	controller, err := v.IssueToken("operator-1", auth.ScopeController, time.Minute)
	require.NoError(t, err)

	rec := doJSON(t, ts.server, "POST", "/api/v1/ap/start", startPayload(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/start", startPayload(), viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, ts.server, "GET", "/api/v1/ap/status", nil, viewer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/start", startPayload(), controller)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNotificationEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := doJSON(t, ts.server, "POST", "/api/v1/ap/start", startPayload(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool {
		st, ok := ts.session.Status()
		return ok && st.State == ap.StateEnabled
	}, time.Second, 5*time.Millisecond)

	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/coex",
		map[string]interface{}{"unsafeFrequencies": []int{5180}}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ts.server, "POST", "/api/v1/ap/plugged",
		map[string]interface{}{"plugged": true}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ts.server, "PUT", "/api/v1/ap/country",
		map[string]interface{}{"countryCode": "DE"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ts.server, "PUT", "/api/v1/ap/country", map[string]interface{}{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusBeforeAnyStart(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := doJSON(t, ts.server, "GET", "/api/v1/ap/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			State int `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int(ap.StateDisabled), resp.Data.State)
}
