package ws

import (
	"encoding/json"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"presence-room/internal/gateway"
	"presence-room/internal/net/proto"
	"presence-room/internal/observability"
	"presence-room/internal/relay"
	"presence-room/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 << 10
	defaultBacklog = 256

	droppedFramesMetricKey = "ws_dropped_frames_total"
	badFramesMetricKey     = "ws_bad_frames_total"
)

// ServerConfig tunes the relay endpoint.
type ServerConfig struct {
	Logger        telemetry.Logger
	Metrics       *telemetry.Counters
	// SendBacklog bounds frames queued per connection; a slow reader loses
	// frames beyond it.
	SendBacklog   int
	Observability observability.Config
}

// Server exposes a relay hub over websockets.
type Server struct {
	hub           *relay.Hub
	logger        telemetry.Logger
	metrics       *telemetry.Counters
	backlog       int
	upgrader      websocket.Upgrader
	started       time.Time
	observability observability.Config
	active        atomic.Int64
}

// NewServer wraps hub.
func NewServer(hub *relay.Hub, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	backlog := cfg.SendBacklog
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Server{
		hub:           hub,
		logger:        logger,
		metrics:       cfg.Metrics,
		backlog:       backlog,
		observability: cfg.Observability,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		started: time.Now(),
	}
}

// Handler returns the relay routes: /ws, /healthz, /metrics and, when
// enabled, /debug/pprof/.
func (s *Server) Handler() nethttp.Handler {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.handleMetrics)
	s.observability.Register(mux)
	return mux
}

func (s *Server) handleMetrics(w nethttp.ResponseWriter, r *nethttp.Request) {
	payload := struct {
		Status      string            `json:"status"`
		ServerTime  int64             `json:"serverTime"`
		Uptime      string            `json:"uptime"`
		Connections int64             `json:"connections"`
		Channels    []string          `json:"channels"`
		Counters    map[string]uint64 `json:"counters"`
	}{
		Status:      "ok",
		ServerTime:  time.Now().UnixMilli(),
		Uptime:      time.Since(s.started).Truncate(time.Second).String(),
		Connections: s.active.Load(),
		Channels:    s.hub.Channels(),
		Counters:    s.metrics.Snapshot(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// HandleWS upgrades /ws?channel=&member=&name=&digest= and relays frames
// until the connection closes.
func (s *Server) HandleWS(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	memberID := query.Get("member")
	if memberID == "" {
		nethttp.Error(w, "missing member", nethttp.StatusBadRequest)
		return
	}
	channel := query.Get("channel")
	if channel == "" {
		channel = proto.DefaultChannel
	}
	member := gateway.Member{
		ID:   memberID,
		Info: proto.MemberMeta{Name: query.Get("name"), WorldDigest: query.Get("digest")},
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed for %s: %v", memberID, err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	s.active.Add(1)
	defer s.active.Add(-1)

	token := relay.NewToken()
	send := make(chan []byte, s.backlog)
	enqueue := func(f Frame) {
		data, err := encodeFrame(f)
		if err != nil {
			s.logger.Printf("failed to encode frame for %s: %v", memberID, err)
			return
		}
		select {
		case send <- data:
		default:
			s.count(droppedFramesMetricKey)
		}
	}

	// The welcome frame must precede the membership snapshot Join delivers.
	enqueue(Frame{Type: FrameWelcome, Token: token})
	done := make(chan struct{})
	go s.writePump(conn, send, done)

	relayConn, err := s.hub.Join(channel, token, member, func(msg gateway.Message) {
		enqueue(messageFrame(msg))
	})
	if err != nil {
		s.logger.Printf("join failed for %s: %v", memberID, err)
		close(done)
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer func() {
		s.hub.Leave(relayConn)
		close(done)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := decodeFrame(payload)
		if err != nil || frame.Type != FrameTrigger || frame.Event == "" {
			s.count(badFramesMetricKey)
			s.logger.Printf("discarding malformed frame from %s", memberID)
			continue
		}
		if _, err := s.hub.Trigger(r.Context(), channel, frame.Event, frame.Data, frame.Exclude); err != nil {
			enqueue(Frame{Type: FrameError, Event: frame.Event, Error: err.Error()})
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (s *Server) count(key string) {
	if s.metrics != nil {
		s.metrics.Add(key, 1)
	}
}
