package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lockbeam/internal/code"
	"github.com/sweeney/lockbeam/internal/emitter"
	"github.com/sweeney/lockbeam/internal/engine"
	"github.com/sweeney/lockbeam/internal/player"
	"github.com/sweeney/lockbeam/internal/status"
	"github.com/sweeney/lockbeam/internal/store"
	"github.com/sweeney/lockbeam/internal/telemetry"
)

type stubController struct {
	generateCode code.Code
	generateErr  error
	transmitID   uuid.UUID
	transmitErr  error
	cancelResult bool

	generateCalls   int
	transmitCalls   int
	cancelCalls     int
	activityCalls   int
	backgroundCalls int
}

func (s *stubController) Generate(ctx context.Context) (code.Code, error) {
	s.generateCalls++
	return s.generateCode, s.generateErr
}

func (s *stubController) Transmit(ctx context.Context) (*player.Handle, error) {
	s.transmitCalls++
	if s.transmitErr != nil {
		return nil, s.transmitErr
	}
	return &player.Handle{ID: s.transmitID}, nil
}

func (s *stubController) CancelTransmission() bool {
	s.cancelCalls++
	return s.cancelResult
}

func (s *stubController) Activity() {
	s.activityCalls++
}

func (s *stubController) Background() {
	s.backgroundCalls++
}

func newTestServer(ctrl Controller) *Server {
	tracker := status.NewTracker("user-1", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), status.Config{
		Broker:   "tcp://broker:1883",
		HTTPAddr: ":8090",
	})
	return New(":0", ctrl, tracker)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubController{})
	rec := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestIndexRendersStatusPage(t *testing.T) {
	s := newTestServer(&stubController{})
	rec := do(t, s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Lockbeam")
	assert.Contains(t, rec.Body.String(), "IDLE")
}

func TestStatusJSON(t *testing.T) {
	s := newTestServer(&stubController{})
	rec := do(t, s, http.MethodGet, "/api/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "status")
}

func TestGenerateSuccess(t *testing.T) {
	expires := time.Date(2026, 3, 1, 8, 2, 0, 0, time.UTC)
	ctrl := &stubController{
		generateCode: code.Code{Value: "Ab3xYz", ExpiresAt: expires},
	}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/generate")
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Ab3xYz", resp.Code)
	assert.True(t, resp.ExpiresAt.Equal(expires))
	assert.Equal(t, 1, ctrl.generateCalls)
	assert.Equal(t, 1, ctrl.activityCalls)
}

func TestGenerateWhileActive(t *testing.T) {
	ctrl := &stubController{generateErr: code.ErrAlreadyActive}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/generate")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "code already active", decodeError(t, rec).Error)
}

func TestTransmitSuccess(t *testing.T) {
	id := uuid.New()
	ctrl := &stubController{transmitID: id}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/transmit")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp transmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id.String(), resp.TransmissionID)
}

func TestTransmitErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"busy", player.ErrBusy, http.StatusConflict, "transmission in progress"},
		{"expired", code.ErrExpired, http.StatusGone, "code expired"},
		{"exhausted", code.ErrExhausted, http.StatusForbidden, "attempts exhausted"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&stubController{transmitErr: tc.err})
			rec := do(t, s, http.MethodPost, "/api/transmit")
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantMsg, decodeError(t, rec).Error)
		})
	}
}

func TestTransmitCooldownIncludesRetry(t *testing.T) {
	ctrl := &stubController{transmitErr: &code.CooldownError{Remaining: 12 * time.Second}}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/transmit")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "cooldown active", resp.Error)
	assert.Equal(t, int64(12000), resp.RetryMs)
}

func TestCancel(t *testing.T) {
	ctrl := &stubController{cancelResult: true}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/transmit/cancel")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp cancelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cancelled)
	assert.Equal(t, 1, ctrl.cancelCalls)
}

func TestCancelNothingInFlight(t *testing.T) {
	s := newTestServer(&stubController{cancelResult: false})
	rec := do(t, s, http.MethodPost, "/api/transmit/cancel")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "false"))
}

func TestActivity(t *testing.T) {
	ctrl := &stubController{}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/activity")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, ctrl.activityCalls)
}

func TestBackground(t *testing.T) {
	ctrl := &stubController{}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/background")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, ctrl.backgroundCalls)
	assert.Equal(t, 0, ctrl.activityCalls)
}

type gateSleeper struct {
	ch chan struct{}
}

func (s gateSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TestTransmitOutlivesRequest drives the real engine through the router:
// playback started by POST /api/transmit must keep running after the
// request context is cancelled when the handler returns.
func TestTransmitOutlivesRequest(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	st := store.NewFakeStore()
	em := emitter.NewFakeEmitter()
	pub := telemetry.NewFakePublisher()
	tracker := status.NewTracker("user-1", now, status.Config{})

	lc := code.New(st, "user-1", code.Config{
		Length: 6, TTL: 120 * time.Second, MaxAttempts: 3, Unit: 60 * time.Millisecond,
	}, func() time.Time { return now })
	gate := make(chan struct{})
	eng := engine.New(lc, player.NewWithSleeper(gateSleeper{ch: gate}), em, pub,
		tracker, nil, "user-1", func() time.Time { return now })

	srv := New(":0", eng, tracker)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/generate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/transmit", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The handler has returned and net/http has cancelled the request
	// context; playback is still parked on its first sleep.
	close(gate)

	deadline := time.Now().Add(2 * time.Second)
	for {
		types := pub.EventTypes()
		if len(types) > 0 {
			switch types[len(types)-1] {
			case telemetry.EventTransmitDone:
				last, ok := em.Last()
				require.True(t, ok)
				assert.False(t, last)
				return
			case telemetry.EventTransmitFailed:
				t.Fatalf("playback aborted after handler return: %v", pub.Events()[len(types)-1].Detail)
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("playback never finished; events: %v", types)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubController{})
	rec := do(t, s, http.MethodGet, "/api/generate")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
