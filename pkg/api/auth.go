package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fernlabour/labour-actor/pkg/authz"
	echo "github.com/labstack/echo/v5"
)

// HTTPAuthClient validates bearer tokens against an external auth service
// over HTTP: no SDK, a timeout-bound client, and a single endpoint that
// returns the authenticated user as JSON.
type HTTPAuthClient struct {
	httpClient  *http.Client
	validateURL string
}

// NewHTTPAuthClient constructs an AuthClient that POSTs the bearer token to
// validateURL and decodes the returned user.
func NewHTTPAuthClient(validateURL string) *HTTPAuthClient {
	return &HTTPAuthClient{
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		validateURL: validateURL,
	}
}

type authClientUser struct {
	UserID      string  `json:"user_id"`
	Issuer      string  `json:"issuer"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Name        *string `json:"name"`
}

// ValidateToken implements authz.AuthClient.
func (c *HTTPAuthClient) ValidateToken(ctx context.Context, token string) (authz.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.validateURL, nil)
	if err != nil {
		return authz.User{}, fmt.Errorf("api: build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authz.User{}, fmt.Errorf("api: auth service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return authz.User{}, errInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return authz.User{}, fmt.Errorf("api: auth service returned HTTP %d: %s", resp.StatusCode, body)
	}

	var u authClientUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return authz.User{}, fmt.Errorf("api: decode auth service response: %w", err)
	}

	return authz.User{
		UserID:      u.UserID,
		Issuer:      u.Issuer,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Name:        u.Name,
	}, nil
}

var errInvalidToken = fmt.Errorf("api: invalid or expired bearer token")

const bearerSubprotocolPrefix = "base64url.bearer.authorization.fernlabour.com."

// tokenFromBearerHeader extracts the token from a standard
// "Authorization: Bearer <token>" header value.
func tokenFromBearerHeader(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

const ctxKeyUser = "auth_user"

// bearerAuth validates the Authorization header against authClient and
// stashes the resulting User on the request context; route handlers resolve
// it to a Principal themselves once they know which aggregate it applies
// to, via Host.ResolvePrincipal.
func bearerAuth(authClient authz.AuthClient) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			token, ok := tokenFromBearerHeader(c.Request().Header.Get("Authorization"))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			user, err := authClient.ValidateToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}
			c.Set(ctxKeyUser, user)
			return next(c)
		}
	}
}

func userFromContext(c *echo.Context) (authz.User, bool) {
	v := c.Get(ctxKeyUser)
	if v == nil {
		return authz.User{}, false
	}
	u, ok := v.(authz.User)
	return u, ok
}
