package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/mesh"
	"github.com/san-kum/deform/internal/meshio"
	"github.com/san-kum/deform/internal/registry"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	store := meshio.NewStore(t.TempDir())
	grid, err := mesh.Grid(2, 2, 1, 1)
	require.NoError(t, err)
	require.NoError(t, store.Save("square", grid))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(New(registry.New(), store, logger, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const sheetBody = `{
	"name": "sheet",
	"mesh": {"name": "square"},
	"mass": 1,
	"material": {"type": "snh", "youngs_modulus": 5, "poissons_ratio": 0.3},
	"integrator": {"type": "forward-euler-area", "dt": 0.01},
	"gravity": [0, -1],
	"pin": {"axis": "y", "above": 0.49},
	"frames": {"count": 2, "size": 10}
}`

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMeshes(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/meshes", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"meshes":["square"]}`, string(body))

	resp, body = do(t, http.MethodGet, ts.URL+"/meshes/square", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m meshBody
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Len(t, m.Vertices, 18)
	assert.Len(t, m.Indices, 24)
	assert.InDeltaSlice(t, []float64{-0.5, -0.5, 0, -0.5}, m.Vertices[:4], 1e-12)

	resp, _ = do(t, http.MethodGet, ts.URL+"/meshes/bunny", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSimulationLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/simulations", sheetBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info registry.Info
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, "SNH", info.Material)
	assert.Equal(t, 9, info.Vertices)

	resp, _ = do(t, http.MethodPost, ts.URL+"/simulations", sheetBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/simulations/sheet/frames?count=3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var payload dynamo.Payload
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Frames, 3)
	assert.Equal(t, 0, payload.Frames[0].FrameNo)
	assert.Len(t, payload.Frames[0].Indices, 24)
	assert.Empty(t, payload.Frames[2].Indices)
	assert.Len(t, payload.Frames[2].Vertices, 18)

	resp, body = do(t, http.MethodGet, ts.URL+"/simulations/sheet", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, 30, info.Steps, "default frame size comes from the config")
	assert.Equal(t, 3, info.NextFrame)

	resp, body = do(t, http.MethodGet, ts.URL+"/simulations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"sheet"`)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/simulations/sheet", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/simulations/sheet/frames", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"name":`, http.StatusBadRequest},
		{"unknown field", `{"name": "x", "color": "red"}`, http.StatusBadRequest},
		{"incompatible integrator", `{"name": "x", "integrator": {"type": "forward-euler-spring", "dt": 0.01}}`, http.StatusUnprocessableEntity},
		{"unknown mesh", `{"name": "x", "mesh": {"name": "bunny"}}`, http.StatusNotFound},
		{"filesystem mesh path", `{"name": "x", "mesh": {"path": "/tmp/square/square.1"}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/simulations", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestFrameLimits(t *testing.T) {
	ts := newTestServer(t, WithMaxSteps(100))
	resp, body := do(t, http.MethodPost, ts.URL+"/simulations", sheetBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = do(t, http.MethodPost, ts.URL+"/simulations/sheet/frames?size=50&count=3", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/simulations/sheet/frames?size=ten", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/simulations/sheet/frames?size=0", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&dynamo.StepError{Wrapped: dynamo.ErrSingular}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&dynamo.StepError{Wrapped: dynamo.ErrDiverged}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(dynamo.ErrContextCanceled))
}

func TestStreamSimulation(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, http.MethodPost, ts.URL+"/simulations", sheetBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/simulations/sheet/stream?size=5&count=3"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	for i := 0; i < 3; i++ {
		var frame dynamo.Frame
		require.NoError(t, ws.ReadJSON(&frame))
		assert.Equal(t, i, frame.FrameNo)
		assert.Len(t, frame.Vertices, 18)
		if i == 0 {
			assert.Len(t, frame.Indices, 24)
		}
	}
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "err = %v", err)

	resp, body = do(t, http.MethodGet, ts.URL+"/simulations/sheet", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info registry.Info
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, 15, info.Steps)
}

func TestStreamRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/simulations/missing/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
