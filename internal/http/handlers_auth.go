package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/service"
)

// AuthServiceInterface is the slice of the auth service consumed by the
// handlers and route guards. Declared on the consumer side so tests can stub
// it without standing up the real service.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlers serves the endpoints backing the UI's session lifecycle:
// login, IdP callback, logout, and the status probe the SPA polls.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieDomain string
	// LogoutURL is the IdP's logout page, included in the logout response
	// when set so the UI can end the SSO session as well.
	LogoutURL string
	Logger    *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login starts the IdP round trip.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	// Only same-origin relative paths survive; anything else falls back to root
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginLogin(r.Context(), redirectURI)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     err,
		})
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback finishes the IdP round trip: the state is checked against its
// cookie, the code is exchanged, and the browser is sent back to where the
// login started.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie(CookieOAuthState)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie(CookieOAuthNonce)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_completion_failed",
			Err:     err,
		})
		return
	}

	h.setSessionCookie(w, r, result.Session)
	h.clearCookie(w, r, CookieOAuthState)
	h.clearCookie(w, r, CookieOAuthNonce)

	http.Redirect(w, r, h.getPostLoginRedirect(w, r), http.StatusFound)
}

// Logout ends the server-side session and clears the cookie. The response
// carries the IdP logout URL when one is configured.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionCookie, err := r.Cookie(CookieSession); err == nil {
		if logoutErr := h.Svc.Logout(r.Context(), sessionCookie.Value); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}

	// Clear the session cookie on the client either way
	h.clearCookie(w, r, CookieSession)

	resp := map[string]string{"status": "signed_out"}
	if h.LogoutURL != "" {
		resp["logout_url"] = h.LogoutURL
	}
	WriteJSON(w, http.StatusOK, resp)
}

// statusUser is the identity block in the status payload.
type statusUser struct {
	ID        string          `json:"id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Role      domainauth.Role `json:"role"`
}

// statusResponse is the /auth/status payload. User and ExpiresAt are absent
// for anonymous callers.
type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *statusUser `json:"user,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

// Status reports whether the caller holds a live session.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionCookie, err := r.Cookie(CookieSession)
	if err != nil {
		WriteJSON(w, http.StatusOK, statusResponse{})
		return
	}

	session, err := h.Svc.GetSession(r.Context(), sessionCookie.Value)
	if err != nil {
		// The session is gone or expired; clear the cookie so the browser
		// stops sending it.
		h.clearCookie(w, r, CookieSession)
		WriteJSON(w, http.StatusOK, statusResponse{})
		return
	}

	WriteJSON(w, http.StatusOK, statusResponse{
		Authenticated: true,
		User: &statusUser{
			ID:        session.UserID,
			FirstName: session.FirstName,
			LastName:  session.LastName,
			Email:     session.Email,
			Role:      session.Role,
		},
		ExpiresAt: &session.ExpiresAt,
	})
}

// baseCookie carries the attributes every auth cookie shares. TLS terminates
// at the ingress, so Secure follows X-Forwarded-Proto as well as the direct
// connection.
func (h *AuthHandlers) baseCookie(r *http.Request, name, value string) *http.Cookie {
	secure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// clearCookie expires the named cookie, mirroring the attributes it was set
// with; some browsers will not delete it otherwise.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	c := h.baseCookie(r, name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, c)
}

// oauthCookieParams groups the values that round-trip through the login
// flow's one-shot cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	for name, value := range map[string]string{
		CookieOAuthState:        p.State,
		CookieOAuthNonce:        p.Nonce,
		CookiePostLoginRedirect: p.RedirectURI,
	} {
		c := h.baseCookie(r, name, value)
		c.MaxAge = oauthCookieMaxAge
		http.SetCookie(w, c)
	}
}

// setSessionCookie ties the cookie lifetime to the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	c := h.baseCookie(r, CookieSession, s.ID)
	c.MaxAge = int(time.Until(s.ExpiresAt).Seconds())
	http.SetCookie(w, c)
}

// getPostLoginRedirect consumes the post-login redirect cookie, returning "/"
// when it is absent.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if redirectCookie, err := r.Cookie(CookiePostLoginRedirect); err == nil {
		// Re-validated here because the cookie round-tripped through the client
		redirectURI = safeRedirectPath(redirectCookie.Value)
		h.clearCookie(w, r, CookiePostLoginRedirect)
	}
	return redirectURI
}

// safeRedirectPath accepts only same-origin relative paths. Anything
// absolute, scheme-relative, or not rooted at "/" collapses to "/".
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
