package contexthelpers

type contextKey string

const isAuthenticatedContextKey = contextKey("isAuthenticated")
const identityIDContextKey = contextKey("identityID")
const accessTokenContextKey = contextKey("accessToken")
const currentPathContextKey = contextKey("currentPath")
const csrfTokenContextKey = contextKey("csrfToken")
const cspNonceContextKey = contextKey("cspNonce")
