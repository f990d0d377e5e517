// Package gateway accepts inbound websocket connections, authenticates the
// caller, and wires sessions into the connection registry.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/domain/event"
	"dm-relay/observability"
	"dm-relay/services"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

type ServerConfig struct {
	AllowedOrigins []string
	SessionBuffer  int
	IdleTimeout    time.Duration
}

type Server struct {
	log      *slog.Logger
	cfg      ServerConfig
	verifier contract.AuthVerifier
	registry contract.IRegistry
	store    contract.MessageStore
	service  services.IMessagingService
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func NewServer(
	log *slog.Logger,
	cfg ServerConfig,
	verifier contract.AuthVerifier,
	registry contract.IRegistry,
	store contract.MessageStore,
	service services.IMessagingService,
	metrics *observability.Metrics,
) *Server {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = true
	}
	return &Server{
		log:      log,
		cfg:      cfg,
		verifier: verifier,
		registry: registry,
		store:    store,
		service:  service,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Authorization"},
	})
	return c.Handler(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleWebSocket authenticates the caller, upgrades the connection and
// registers the session. An invalid credential rejects the request before
// any upgrade; nothing is registered.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.verifier.Verify(credentials(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	ctx := r.Context()
	sink := NewSink(s.cfg.SessionBuffer)
	session := domain.NewSession(userID, sink)

	prev, superseded := s.registry.Register(userID, session)
	if superseded {
		// Latest connection wins: tell the old transport before closing it.
		if err := prev.Deliver(ctx, event.SessionReplaced{At: time.Now().UTC()}); err != nil {
			s.log.Debug("Replaced notice delivery failed", "user_id", userID, "error", err)
		}
		prev.Close()
		s.metrics.SessionsReplaced.Add(1)
	}
	s.metrics.SessionsOpened.Add(1)
	s.log.Info("Session opened", "user_id", userID, "session_id", session.ID)

	client := newClient(s.log, conn, sink, session, s.service, s.cfg.IdleTimeout)
	go client.writePump()

	s.replayBacklog(ctx, session)

	client.readPump(ctx)

	// Transport gone: a stale unregister after supersession is a no-op and
	// must not clear the newer session.
	s.registry.Unregister(userID, session.ID)
	session.Close()
	s.metrics.SessionsClosed.Add(1)
	s.log.Info("Session closed", "user_id", userID, "session_id", session.ID)
}

// replayBacklog pushes messages queued while the user was offline onto the
// fresh session, then confirms them as delivered.
func (s *Server) replayBacklog(ctx context.Context, session *domain.Session) {
	queued, err := s.store.FetchUndelivered(ctx, session.UserID)
	if err != nil {
		s.log.Warn("Backlog fetch failed", "user_id", session.UserID, "error", err)
		return
	}
	if len(queued) == 0 {
		return
	}

	var delivered []string
	for _, msg := range queued {
		msg.Status = domain.StatusDelivered
		if err := session.Deliver(ctx, toMessageReceived(msg)); err != nil {
			break
		}
		delivered = append(delivered, msg.ID)
	}
	if len(delivered) == 0 {
		return
	}
	if err := s.store.MarkDelivered(ctx, session.UserID, delivered); err != nil {
		s.log.Warn("Backlog confirmation failed", "user_id", session.UserID, "error", err)
		return
	}
	s.metrics.MessagesDelivered.Add(uint64(len(delivered)))
	s.log.Debug("Backlog replayed", "user_id", session.UserID, "count", len(delivered))
}

func credentials(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
