package httpx

// Cookie names shared by the auth handlers and middleware. Centralized here
// so the login flow, logout, and session lookup never drift apart.
const (
	// CookieSession carries the server-side session ID.
	CookieSession = "session_id"

	// CookieOAuthState and CookieOAuthNonce hold the transient OAuth
	// round-trip values between /auth/login and /auth/callback.
	CookieOAuthState = "oauth_state"
	CookieOAuthNonce = "oauth_nonce"

	// CookiePostLoginRedirect remembers where the user was headed before
	// being sent to the identity provider.
	CookiePostLoginRedirect = "post_login_redirect"
)

const (
	// oauthCookieMaxAge bounds how long the OAuth round-trip cookies live.
	// The callback must land within this window.
	oauthCookieMaxAge = 600 // 10 minutes

	// maxListPageSize is the largest page_size the list endpoint accepts.
	// Larger requests are clamped rather than rejected.
	maxListPageSize = 200
)
