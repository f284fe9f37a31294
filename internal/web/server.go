package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mtzanidakis/digifuse/internal/auth"
	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/domain"
	"github.com/mtzanidakis/digifuse/internal/natsbus"
	"github.com/mtzanidakis/digifuse/internal/store"
	"github.com/nats-io/nats.go"
)

const sessionCookieName = "session"

type Catalog interface {
	List(ctx context.Context) ([]domain.Creature, error)
	Find(ctx context.Context, name string) (*domain.Creature, error)
	FindPair(ctx context.Context, a, b string) (*domain.Creature, *domain.Creature, error)
}

type Fuser interface {
	Create(ctx context.Context, req domain.FusionRequest) domain.FusionResult
}

// GoogleVerifier turns a Google ID token into a verified identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*auth.GoogleIdentity, error)
}

type Options struct {
	Store     *store.Store
	Catalog   Catalog
	Fusion    Fuser
	Sessions  *auth.Sessions
	Google    GoogleVerifier
	Bus       *natsbus.Bus
	Config    config.WebConfig
	RateLimit config.RateLimitConfig
	Logger    *slog.Logger
	Version   string
}

type Server struct {
	store     *store.Store
	catalog   Catalog
	fusion    Fuser
	sessions  *auth.Sessions
	google    GoogleVerifier
	limiter   *limiterSet
	bus       *natsbus.Bus
	nats      *natsbus.Client
	hub       *Hub
	cfg       config.WebConfig
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = auth.NewSessions(0)
	}
	return &Server{
		store:     opts.Store,
		catalog:   opts.Catalog,
		fusion:    opts.Fusion,
		sessions:  sessions,
		google:    opts.Google,
		limiter:   newLimiterSet(opts.RateLimit.Interval, opts.RateLimit.Burst),
		bus:       opts.Bus,
		hub:       NewHub(logger),
		cfg:       opts.Config,
		logger:    logger,
		version:   opts.Version,
		startedAt: time.Now(),
	}
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	return s.withMiddleware(mux)
}

// Start connects to the event bus, runs the websocket hub and serves HTTP
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.ConnectEvents(); err != nil {
		return err
	}
	defer s.Close()

	go s.hub.Run(ctx)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ConnectEvents opens a bus client used both to publish domain events and
// to forward every event topic to websocket clients. A nil bus disables
// events.
func (s *Server) ConnectEvents() error {
	if s.bus == nil || s.nats != nil {
		return nil
	}
	client, err := natsbus.NewClient(s.bus)
	if err != nil {
		return fmt.Errorf("web server nats client: %w", err)
	}
	s.nats = client

	_, err = client.Subscribe(natsbus.TopicEventsAll, func(msg *nats.Msg) {
		var ev natsbus.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.logger.Warn("invalid NATS event payload", "subject", msg.Subject, "error", err)
			return
		}
		s.hub.Broadcast(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	return client.Flush()
}

func (s *Server) Close() {
	if s.nats != nil {
		s.nats.Close()
		s.nats = nil
	}
}

func (s *Server) publish(topic string, ev natsbus.Event) {
	if s.nats == nil {
		return
	}
	if err := s.nats.PublishEvent(topic, ev); err != nil {
		s.logger.Warn("publish event failed", "topic", topic, "error", err)
	}
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic in handler",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				jsonError(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		// CORS
		origin := s.cfg.AllowedOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") && !isPublicPath(r.URL.Path) {
			userID, ok := s.sessions.Lookup(requestToken(r))
			if !ok {
				jsonError(w, "access token required", http.StatusUnauthorized)
				return
			}
			r = r.WithContext(withUserID(r.Context(), userID))
		}

		next.ServeHTTP(w, r)
	})
}

// The websocket endpoint authenticates itself since browsers cannot set
// headers on an upgrade request.
func isPublicPath(path string) bool {
	switch path {
	case "/api/", "/api/auth/register", "/api/auth/login", "/api/auth/google-login", "/api/ws":
		return true
	}
	return false
}

// requestToken extracts the session token from the Authorization header,
// the session cookie or the token query parameter, in that order.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

type ctxKey struct{}

func withUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKey{}).(int64)
	return id
}
