// Package relay serves the signaling channel: peers of a session connect over
// websocket and every envelope they send is fanned out to the rest of the
// session. The relay never interprets shapes.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/logging"
	"advisory-canvas/internal/protocol"
	"advisory-canvas/internal/resilience"
	"advisory-canvas/internal/security"
	"advisory-canvas/internal/store"
	"advisory-canvas/internal/stream"
	"advisory-canvas/internal/transport"
)

// Config holds relay settings.
type Config struct {
	Addr string
	Hub  stream.HubConfig

	// RateLimit is the sustained frames per second allowed per connection;
	// RateBurst is the bucket size. Frames over the limit are dropped.
	RateLimit float64
	RateBurst int

	MaxMessageBytes int64
	WriteTimeout    time.Duration

	// Journal is optional; when set, traffic metadata is recorded.
	Journal        store.Journal
	JournalTimeout time.Duration

	Logger zerolog.Logger
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8787",
		Hub:             stream.DefaultHubConfig(),
		RateLimit:       50,
		RateBurst:       100,
		MaxMessageBytes: 1 << 20,
		WriteTimeout:    5 * time.Second,
		JournalTimeout:  2 * time.Second,
		Logger:          zerolog.Nop(),
	}
}

// Server is the signaling relay.
type Server struct {
	cfg      Config
	hub      *stream.Hub
	metrics  *Metrics
	router   *mux.Router
	upgrader websocket.Upgrader
	validate *validator.Validate
	logger   zerolog.Logger
	journal  *journalConsumer

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer builds a relay. Call Start (or ListenAndServe) before peers connect.
func NewServer(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = def.JournalTimeout
	}
	if cfg.Hub.BufferSize <= 0 {
		cfg.Hub = def.Hub
	}

	hub := stream.NewHubWithConfig(cfg.Hub)
	s := &Server{
		cfg:     cfg,
		hub:     hub,
		metrics: newMetrics(hub),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate: validator.New(),
		logger:   logging.WithOperation(cfg.Logger, "relay"),
	}
	if cfg.Journal != nil {
		s.journal = &journalConsumer{
			journal: cfg.Journal,
			breaker: resilience.NewBreaker("journal", resilience.DefaultBreakerConfig()),
			metrics: s.metrics,
			logger:  s.logger,
			timeout: cfg.JournalTimeout,
		}
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.Methods(http.MethodGet).Path("/sessions/{session}/ws").HandlerFunc(s.handleWebSocket)
	r.Methods(http.MethodGet).Path("/sessions/{session}/peers").HandlerFunc(s.handlePeers)
	r.Methods(http.MethodDelete).Path("/sessions/{session}/peers/{peer}").HandlerFunc(s.handleKick)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

// logRequests attaches a request logger to the context and logs every
// request once it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With().Str("remote", r.RemoteAddr).Logger()
		r = r.WithContext(logging.WithLogger(r.Context(), logger))
		m := httpsnoop.CaptureMetrics(next, w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", m.Code).
			Dur("duration", m.Duration).
			Msg("handled")
	})
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub exposes the fan-out hub.
func (s *Server) Hub() *stream.Hub {
	return s.hub
}

// Metrics exposes the relay's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start runs the hub and attaches the journal.
func (s *Server) Start(ctx context.Context) {
	if s.journal != nil {
		s.hub.RegisterConsumer(s.journal)
	}
	s.hub.Start(ctx)
}

// Stop disconnects every peer and detaches the journal.
func (s *Server) Stop() {
	if s.journal != nil {
		s.hub.UnregisterConsumer(s.journal)
	}
	s.hub.Stop()
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.Start(ctx)
	defer s.Stop()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("Relay listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Stop()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	peer := r.URL.Query().Get("peer")
	if !security.IsIdentifier(session) || !security.IsIdentifier(peer) {
		http.Error(w, "invalid session or peer", http.StatusBadRequest)
		return
	}

	sub, err := s.hub.Subscribe(session, peer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	logger := logging.WithSession(logging.WithPeer(logging.FromContext(r.Context()), peer), session)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.Unsubscribe(sub)
		logger.Warn().Err(err).Msg("Upgrade failed")
		return
	}

	started := time.Now()
	logging.LogRelay(logger, "join", session, peer, 0)
	s.metrics.connections.Inc()

	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	done := make(chan struct{})
	go s.writeLoop(conn, sub, done, logger)

	s.readLoop(conn, session, peer, logger)

	s.hub.Unsubscribe(sub)
	<-done
	s.metrics.connections.Dec()
	logging.LogRelay(logger, "leave", session, peer, time.Since(started))
}

// readLoop publishes every accepted frame from one peer until the peer goes away.
func (s *Server) readLoop(conn *websocket.Conn, session, peer string, logger zerolog.Logger) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.metrics.dropped.WithLabelValues(dropTooLarge).Inc()
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Peer read ended")
			}
			return
		}

		if !limiter.Allow() {
			s.metrics.dropped.WithLabelValues(dropRateLimited).Inc()
			logging.LogDropped(logger, "envelope", peer, errors.ErrRateLimited)
			continue
		}

		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.metrics.dropped.WithLabelValues(dropMalformed).Inc()
			logging.LogDropped(logger, "envelope", peer, err)
			continue
		}
		if err := s.validate.Struct(env); err != nil {
			s.metrics.dropped.WithLabelValues(dropMalformed).Inc()
			logging.LogDropped(logger, env.Type, peer, err)
			continue
		}

		// The connection, not the frame, decides who the sender is.
		env.From = peer

		msg := stream.Message{Room: session, Envelope: env, Size: len(data), ReceivedAt: time.Now()}
		if !s.hub.Publish(msg) {
			s.metrics.dropped.WithLabelValues(dropHubFull).Inc()
			logger.Warn().Str("type", env.Type).Msg("Hub buffer full, frame dropped")
			continue
		}
		s.metrics.messages.WithLabelValues(typeLabel(env.Type)).Inc()
		s.metrics.bytes.Add(float64(len(data)))
	}
}

// writeLoop forwards the subscriber's envelopes to the peer until the
// subscription is closed. Closing the connection on exit unblocks readLoop.
func (s *Server) writeLoop(conn *websocket.Conn, sub *stream.Subscriber, done chan<- struct{}, logger zerolog.Logger) {
	defer close(done)
	defer conn.Close()
	for env := range sub.Channel {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return
		}
		if err := conn.WriteJSON(env); err != nil {
			logger.Debug().Err(err).Msg("Peer write failed")
			return
		}
	}
}

// typeLabel bounds the metric label set to the known message types.
func typeLabel(msgType string) string {
	for _, t := range protocol.MessageTypes {
		if t == msgType {
			return t
		}
	}
	return "other"
}

type peersResponse struct {
	Session string   `json:"session"`
	Peers   []string `json:"peers"`
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	if !security.IsIdentifier(session) {
		http.Error(w, "invalid session", http.StatusBadRequest)
		return
	}
	peers := s.hub.Peers(session)
	if peers == nil {
		peers = []string{}
	}
	writeJSON(w, http.StatusOK, peersResponse{Session: session, Peers: peers})
}

// handleKick drops a peer's connection. The peer's transport reconnects on
// its own and resyncs.
func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.hub.Disconnect(vars["session"], vars["peer"]) {
		http.Error(w, "peer not connected", http.StatusNotFound)
		return
	}
	logging.LogRelay(logging.FromContext(r.Context()), "kick", vars["session"], vars["peer"], 0)
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status      string                   `json:"status"`
	Rooms       int                      `json:"rooms"`
	Subscribers int                      `json:"subscribers"`
	Hub         bool                     `json:"hub"`
	Journal     *resilience.BreakerStats `json:"journal,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	m := s.hub.GetMetrics()
	status := http.StatusOK
	resp := healthResponse{Status: "ok", Rooms: m.Rooms, Subscribers: m.Subscribers, Hub: s.hub.IsStarted()}
	if s.journal != nil {
		stats := s.journal.breaker.Stats()
		resp.Journal = &stats
		if stats.State != resilience.StateClosed {
			resp.Status = "degraded"
		}
	}
	if !resp.Hub {
		resp.Status = "starting"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
