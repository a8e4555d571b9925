package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades the connection and authenticates the caller from the
// Sec-WebSocket-Protocol bearer sub-protocol (browsers cannot set custom
// headers on a WebSocket handshake), then hands the connection to the
// ConnectionManager. Origins are checked against a configured allowlist.
func (s *Server) wsHandler(c *echo.Context) error {
	token, ok := bearerTokenFromSubprotocols(c.Request().Header.Values("Sec-WebSocket-Protocol"))
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer sub-protocol")
	}

	user, err := s.authClient.ValidateToken(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.allowedWSOrigins,
		Subprotocols:   []string{negotiatedSubprotocol(token)},
	})
	if err != nil {
		return err
	}

	s.connManager.HandleConnection(c.Request().Context(), conn, user)
	return nil
}

// bearerTokenFromSubprotocols finds the fernlabour bearer sub-protocol entry
// among the client's offered protocols and decodes the token it carries.
func bearerTokenFromSubprotocols(protocolHeaders []string) (string, bool) {
	for _, header := range protocolHeaders {
		for _, entry := range strings.Split(header, ",") {
			entry = strings.TrimSpace(entry)
			if !strings.HasPrefix(entry, bearerSubprotocolPrefix) {
				continue
			}
			encoded := strings.TrimPrefix(entry, bearerSubprotocolPrefix)
			decoded, err := base64.RawURLEncoding.DecodeString(encoded)
			if err != nil {
				continue
			}
			return string(decoded), true
		}
	}
	return "", false
}

// negotiatedSubprotocol echoes back the exact sub-protocol entry the client
// offered, which coder/websocket requires the server to select explicitly.
func negotiatedSubprotocol(token string) string {
	return bearerSubprotocolPrefix + base64.RawURLEncoding.EncodeToString([]byte(token))
}
