package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fernlabour/labour-actor/pkg/authz"
	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromBearerHeader(t *testing.T) {
	token, ok := tokenFromBearerHeader("Bearer abc123")
	require.True(t, ok)
	assert.Equal(t, "abc123", token)

	_, ok = tokenFromBearerHeader("Basic abc123")
	assert.False(t, ok)

	_, ok = tokenFromBearerHeader("")
	assert.False(t, ok)
}

type fakeAuthClient struct {
	user authz.User
	err  error
}

func (f *fakeAuthClient) ValidateToken(ctx context.Context, token string) (authz.User, error) {
	if f.err != nil {
		return authz.User{}, f.err
	}
	return f.user, nil
}

func TestBearerAuthRejectsMissingHeader(t *testing.T) {
	e := echo.New()
	e.Use(bearerAuth(&fakeAuthClient{user: authz.User{UserID: "mother-1"}}))
	e.GET("/test", func(c *echo.Context) error { return c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	e := echo.New()
	e.Use(bearerAuth(&fakeAuthClient{user: authz.User{UserID: "mother-1"}}))
	e.GET("/test", func(c *echo.Context) error {
		u, ok := userFromContext(c)
		require.True(t, ok)
		return c.String(http.StatusOK, u.UserID)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mother-1", rec.Body.String())
}

func TestBearerSubprotocolRoundTrip(t *testing.T) {
	entry := negotiatedSubprotocol("my-token")
	token, ok := bearerTokenFromSubprotocols([]string{entry})
	require.True(t, ok)
	assert.Equal(t, "my-token", token)
}

func TestBearerSubprotocolRejectsOtherProtocols(t *testing.T) {
	_, ok := bearerTokenFromSubprotocols([]string{"graphql-ws", "other.protocol"})
	assert.False(t, ok)
}
