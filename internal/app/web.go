// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/pinball_tilt/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 2 * time.Second

// wsEnvelope is every message the server sends on /ws/joystick.
type wsEnvelope struct {
	Type    string `json:"type"` // joystick, event, calibration, ack, error
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// webServer keeps the latest producer messages and fans them out to
// websocket clients. Inbound websocket commands are forwarded to the
// producer over MQTT.
type webServer struct {
	pub          Publisher
	commandTopic string

	mu          sync.RWMutex
	joystick    JoystickMessage
	haveJoy     bool
	calibration *CalibrationMessage

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

func newWebServer(pub Publisher, commandTopic string) *webServer {
	return &webServer{
		pub:          pub,
		commandTopic: commandTopic,
		clients:      make(map[*wsClient]struct{}),
	}
}

func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	s := newWebServer(mqttPublisher{client: client}, cfg.TopicCommand)

	if err := subscribeJSON(client, "web", cfg.TopicJoystick, s.updateJoystick); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", cfg.TopicEvents, func(ev EventMessage) {
		s.broadcast(wsEnvelope{Type: "event", Data: ev})
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", cfg.TopicCalibration, s.updateCalibration); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, s.routes())
}

func (s *webServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/joystick", s.handleJoystick)
	mux.HandleFunc("/api/calibration", s.handleCalibration)
	mux.HandleFunc("/ws/joystick", s.handleWS)
	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (s *webServer) updateJoystick(m JoystickMessage) {
	s.mu.Lock()
	s.joystick = m
	s.haveJoy = true
	s.mu.Unlock()
	s.broadcast(wsEnvelope{Type: "joystick", Data: m})
}

func (s *webServer) updateCalibration(m CalibrationMessage) {
	s.mu.Lock()
	s.calibration = &m
	s.mu.Unlock()
	s.broadcast(wsEnvelope{Type: "calibration", Data: m})
}

func (s *webServer) handleJoystick(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveJoy {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.joystick)
}

func (s *webServer) handleCalibration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.calibration == nil {
			http.Error(w, "no calibration yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, s.calibration)

	case http.MethodPost:
		if err := s.forward(Command{Action: ActionCalibrate}); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *webServer) forward(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return s.pub.PublishJSON(s.commandTopic, false, cmd)
}

// handleWS streams producer messages and accepts commands.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 32)}
	go c.writeLoop()

	s.mu.RLock()
	if s.haveJoy {
		c.queue(wsEnvelope{Type: "joystick", Data: s.joystick})
	}
	s.mu.RUnlock()

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		close(c.send)
	}()

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}
		if err := s.forward(cmd); err != nil {
			c.queue(wsEnvelope{Type: "error", Message: err.Error()})
			continue
		}
		c.queue(wsEnvelope{Type: "ack", Message: cmd.Action})
	}
}

func (s *webServer) broadcast(env wsEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("web: json marshal error: %v", err)
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.queueRaw(payload)
	}
}

func (c *wsClient) queue(env wsEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("web: json marshal error: %v", err)
		return
	}
	c.queueRaw(payload)
}

// queueRaw drops the message when the client is too slow.
func (c *wsClient) queueRaw(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}
