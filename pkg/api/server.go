// Package api is the HTTP/WebSocket edge for the labour actor: command
// submission, read-model queries, checkout webhook receipt, and real-time
// event delivery over WebSocket.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/fernlabour/labour-actor/pkg/actor"
	"github.com/fernlabour/labour-actor/pkg/authz"
	"github.com/fernlabour/labour-actor/pkg/config"
	"github.com/fernlabour/labour-actor/pkg/database"
	"github.com/fernlabour/labour-actor/pkg/webhook"
)

// maxCommandBodySize bounds the command/webhook request body Echo will
// read before handlers ever see it.
const maxCommandBodySize = 256 * 1024

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg              *config.Config
	dbClient         *database.Client
	host             *actor.Host
	connManager      *ConnectionManager
	authClient       authz.AuthClient
	webhookVerifier  *webhook.Verifier
	allowedWSOrigins []string
}

// NewServer constructs the API server and registers every route. cfg
// supplies the WS origin allowlist, internal-auth secret/prefix, and
// webhook secret/tolerance; the remaining collaborators are the
// already-wired composition-root pieces (event store client, actor host,
// WS connection manager, external auth client).
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	host *actor.Host,
	connManager *ConnectionManager,
	authClient authz.AuthClient,
	webhookVerifier *webhook.Verifier,
) *Server {
	s := &Server{
		echo:             echo.New(),
		cfg:              cfg,
		dbClient:         dbClient,
		host:             host,
		connManager:      connManager,
		authClient:       authClient,
		webhookVerifier:  webhookVerifier,
		allowedWSOrigins: cfg.AllowedWSOrigins,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers every API route.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(maxCommandBodySize))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")

	authed := v1.Group("", bearerAuth(s.authClient))
	authed.POST("/labours", s.planLabourHandler)
	authed.POST("/labours/:id/commands", s.commandHandler)
	authed.GET("/labours/:id", s.queryLabourHandler)

	// wsHandler authenticates itself from the Sec-WebSocket-Protocol
	// sub-protocol (browsers cannot set an Authorization header on a
	// WebSocket handshake), so it is registered outside the Authorization
	// -header bearerAuth group.
	v1.GET("/ws", s.wsHandler)

	internal := v1.Group("/internal", internalServiceAuth(s.cfg.InternalAuthSecret))
	internal.POST("/labours/:id/commands", s.internalCommandHandler)

	v1.POST("/webhooks/checkout", s.webhookHandler)
}

// Start starts the HTTP server on addr (non-blocking from the caller's
// perspective; ListenAndServe blocks this goroutine).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
