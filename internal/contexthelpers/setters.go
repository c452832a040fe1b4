package contexthelpers

import (
	"context"
)

func SetIsAuthenticated(ctx context.Context, isAuthenticated bool) context.Context {
	return context.WithValue(ctx, isAuthenticatedContextKey, isAuthenticated)
}

func SetIdentityID(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, identityIDContextKey, identityID)
}

func SetAccessToken(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey, accessToken)
}

func SetCurrentPath(ctx context.Context, currentPath string) context.Context {
	return context.WithValue(ctx, currentPathContextKey, currentPath)
}

func SetCSRFToken(ctx context.Context, csrfToken string) context.Context {
	return context.WithValue(ctx, csrfTokenContextKey, csrfToken)
}

func SetCSPNonce(ctx context.Context, cspNonce string) context.Context {
	return context.WithValue(ctx, cspNonceContextKey, cspNonce)
}
