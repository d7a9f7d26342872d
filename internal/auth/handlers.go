package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/openhearth/backend-donate/internal/common"
	"github.com/openhearth/backend-donate/internal/user"
)

// UserStore is the subset of user persistence the login flow needs.
type UserStore interface {
	FindOrCreateByEmail(ctx context.Context, email, name string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Handler implements OAuth login, session lookup and logout.
type Handler struct {
	OAuth         *oauth2.Config
	Users         UserStore
	Sessions      SessionStore
	ClientBaseURL string
	CookieSecure  bool
	Logger        zerolog.Logger

	// ProfileURL overrides the identity provider's userinfo endpoint, used
	// by tests to point at a local server.
	ProfileURL string
}

const (
	sessionCookie = "donate_session"
	stateCookie   = "oauth_state"
)

const defaultProfileURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Login handles GET /auth/google: it stamps a state cookie and redirects to
// the provider's consent page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.configured() {
		common.JSONError(w, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "login unavailable", nil)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.OAuth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback handles GET /auth/google/callback: code exchange, profile lookup,
// find-or-create by email and session establishment.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.configured() {
		common.JSONError(w, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "login unavailable", nil)
		return
	}
	stateFromCookie, err := r.Cookie(stateCookie)
	if err != nil || stateFromCookie.Value == "" || stateFromCookie.Value != r.URL.Query().Get("state") {
		common.JSONError(w, http.StatusBadRequest, "INVALID_STATE", "oauth state mismatch", nil)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "CODE_REQUIRED", "authorization code missing", nil)
		return
	}

	token, err := h.OAuth.Exchange(r.Context(), code)
	if err != nil {
		h.Logger.Error().Err(err).Msg("oauth code exchange failed")
		common.JSONError(w, http.StatusBadGateway, "EXCHANGE_FAILED", "unable to complete login", nil)
		return
	}

	prof, err := h.fetchProfile(r.Context(), token)
	if err != nil {
		h.Logger.Error().Err(err).Msg("fetch oauth profile")
		common.JSONError(w, http.StatusBadGateway, "PROFILE_FAILED", "unable to complete login", nil)
		return
	}
	if strings.TrimSpace(prof.Email) == "" {
		common.JSONError(w, http.StatusBadGateway, "PROFILE_FAILED", "identity provider returned no email", nil)
		return
	}

	account, err := h.Users.FindOrCreateByEmail(r.Context(), prof.Email, prof.Name)
	if err != nil {
		h.Logger.Error().Err(err).Msg("find or create user")
		common.JSONError(w, http.StatusInternalServerError, "USER_STORE_ERROR", "unable to complete login", nil)
		return
	}

	sessionID, err := h.Sessions.Create(r.Context(), account.ID)
	if err != nil {
		h.Logger.Error().Err(err).Msg("create session")
		common.JSONError(w, http.StatusInternalServerError, "SESSION_ERROR", "unable to complete login", nil)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.Logger.Info().Str("user_id", account.ID).Msg("login completed")
	http.Redirect(w, r, h.ClientBaseURL, http.StatusTemporaryRedirect)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	account, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": account})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if h.Sessions != nil {
			_ = h.Sessions.Delete(r.Context(), cookie.Value)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	common.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// RequireAuth resolves the session cookie and stores the user id on the
// request context, rejecting unauthenticated requests.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Sessions == nil {
			common.JSONError(w, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "sessions unavailable", nil)
			return
		}
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
			return
		}
		userID, err := h.Sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func (h *Handler) configured() bool {
	return h.OAuth != nil && h.OAuth.ClientID != "" && h.Users != nil && h.Sessions != nil
}

func (h *Handler) fetchProfile(ctx context.Context, token *oauth2.Token) (profile, error) {
	url := h.ProfileURL
	if url == "" {
		url = defaultProfileURL
	}
	resp, err := h.OAuth.Client(ctx, token).Get(url)
	if err != nil {
		return profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return profile{}, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}
	var prof profile
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		return profile{}, err
	}
	return prof, nil
}
