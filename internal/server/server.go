package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/server/handler"
	"github.com/alanyoungcy/launchpad/internal/server/middleware"
	"github.com/alanyoungcy/launchpad/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// MaxSkew bounds the age of a signed request timestamp.
	MaxSkew time.Duration
	// RateLimit is requests per RateWindow per client; 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Campaigns *handler.CampaignHandler
	Bids      *handler.BidHandler
	Protocol  *handler.ProtocolHandler
	Accounts  *handler.AccountHandler
	Audit     *handler.AuditHandler
}

// Guards are the shared-state request guards. Either field may be nil.
type Guards struct {
	Limiter domain.RateLimiter
	Replays domain.ReplayGuard
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Mutating routes
// require a request signature and each signed request is accepted once;
// reads are public.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, guards Guards, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, wsHub, guards, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed and middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, guards Guards, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	signed := middleware.SignatureAuth(cfg.MaxSkew, nil, guards.Replays)
	post := func(pattern string, fn http.HandlerFunc) {
		mux.Handle("POST "+pattern, signed(fn))
	}

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/protocol", handlers.Protocol.GetProtocol)
	post("/api/protocol/fund", handlers.Protocol.FundAccount)

	mux.HandleFunc("GET /api/campaigns", handlers.Campaigns.ListCampaigns)
	mux.HandleFunc("GET /api/campaigns/{product}", handlers.Campaigns.GetCampaign)
	post("/api/campaigns", handlers.Campaigns.Launch)
	post("/api/campaigns/{product}/claim-funds", handlers.Campaigns.ClaimFunds)

	mux.HandleFunc("GET /api/campaigns/{product}/bids", handlers.Bids.ListBids)
	mux.HandleFunc("GET /api/campaigns/{product}/bids/{bidder}", handlers.Bids.GetBid)
	post("/api/campaigns/{product}/bids", handlers.Bids.PlaceBid)
	post("/api/campaigns/{product}/bids/{bidder}/approve", handlers.Bids.ApproveBid)
	post("/api/campaigns/{product}/bids/{bidder}/reject", handlers.Bids.RejectBid)
	post("/api/campaigns/{product}/claim-tokens", handlers.Bids.ClaimTokens)

	mux.HandleFunc("GET /api/accounts/{account}/balance", handlers.Accounts.GetBalance)

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if guards.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(guards.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
