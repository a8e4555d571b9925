package authz

import "context"

// AuthClient validates an opaque bearer token against the external auth
// service and returns the User it identifies. pkg/api holds the only
// implementation (an HTTP client); declaring the interface here keeps
// pkg/authz import-free of pkg/api while letting ResolvePrincipal's input
// type live next to ResolvePrincipal itself.
type AuthClient interface {
	ValidateToken(ctx context.Context, token string) (User, error)
}
