package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/pinball_tilt/internal/calibration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(s *webServer, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestJoystickEndpoint(t *testing.T) {
	s := newWebServer(&fakePublisher{}, "cmd")
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, http.MethodGet, "/api/joystick").Code)

	s.updateJoystick(JoystickMessage{X: 0.25, Y: -0.5, Valid: true})
	rec := serve(s, http.MethodGet, "/api/joystick")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got JoystickMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 0.25, got.X)
	assert.Equal(t, -0.5, got.Y)
}

func TestCalibrationEndpoint(t *testing.T) {
	pub := &fakePublisher{}
	s := newWebServer(pub, "cmd")
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, http.MethodGet, "/api/calibration").Code)

	assert.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/api/calibration").Code)
	require.Equal(t, 1, pub.count("cmd"))
	var cmd Command
	require.NoError(t, pub.last("cmd", &cmd))
	assert.Equal(t, ActionCalibrate, cmd.Action)

	s.updateCalibration(CalibrationMessage{Record: calibration.Record{OffsetY: 0.4, Valid: 128}})
	rec := serve(s, http.MethodGet, "/api/calibration")
	require.Equal(t, http.StatusOK, rec.Code)
	var msg CalibrationMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, 0.4, msg.OffsetY)
	assert.Equal(t, 128, msg.Valid)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodDelete, "/api/calibration").Code)
}

type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocket(t *testing.T) {
	pub := &fakePublisher{}
	s := newWebServer(pub, "cmd")
	s.updateJoystick(JoystickMessage{X: 0.1, Y: 0.2, Valid: true})

	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/joystick"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	env := readEnvelope(t, conn)
	assert.Equal(t, "joystick", env.Type)
	var joy JoystickMessage
	require.NoError(t, json.Unmarshal(env.Data, &joy))
	assert.Equal(t, 0.1, joy.X)

	require.NoError(t, conn.WriteJSON(Command{Action: ActionOffset, OffsetX: 0.3}))
	env = readEnvelope(t, conn)
	assert.Equal(t, "ack", env.Type)
	assert.Equal(t, ActionOffset, env.Message)
	require.Equal(t, 1, pub.count("cmd"))
	var cmd Command
	require.NoError(t, pub.last("cmd", &cmd))
	assert.Equal(t, 0.3, cmd.OffsetX)

	require.NoError(t, conn.WriteJSON(Command{Action: "reboot"}))
	env = readEnvelope(t, conn)
	assert.Equal(t, "error", env.Type)
	assert.Contains(t, env.Message, "reboot")
	assert.Equal(t, 1, pub.count("cmd"))

	// broadcasts reach connected clients
	s.updateJoystick(JoystickMessage{X: -0.7, Valid: true})
	env = readEnvelope(t, conn)
	require.Equal(t, "joystick", env.Type)
	require.NoError(t, json.Unmarshal(env.Data, &joy))
	assert.Equal(t, -0.7, joy.X)
}
