package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/openhearth/backend-donate/internal/auth"
	"github.com/openhearth/backend-donate/internal/user"
)

type fakeUsers struct {
	users   map[string]user.User
	created []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]user.User{}}
}

func (f *fakeUsers) FindOrCreateByEmail(_ context.Context, email, name string) (user.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	u := user.User{ID: "u-" + email, Email: email, Name: name, CreatedAt: time.Now()}
	f.users[u.ID] = u
	f.created = append(f.created, email)
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, errors.New("not found")
	}
	return u, nil
}

func newSessions(t *testing.T) auth.RedisSessions {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.RedisSessions{Client: client, TTL: time.Hour}
}

func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"email": "ada@example.org",
			"name":  "Ada Lovelace",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthHandler(t *testing.T, users auth.UserStore) *auth.Handler {
	t.Helper()
	provider := newProviderServer(t)
	return &auth.Handler{
		OAuth: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8080/auth/google/callback",
			Scopes:       []string{"email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  provider.URL + "/auth",
				TokenURL: provider.URL + "/token",
			},
		},
		Users:         users,
		Sessions:      newSessions(t),
		ClientBaseURL: "https://donate.example.org",
		ProfileURL:    provider.URL + "/userinfo",
		Logger:        zerolog.Nop(),
	}
}

func TestLoginRedirectsWithState(t *testing.T) {
	t.Parallel()

	h := newOAuthHandler(t, newFakeUsers())
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	location := rr.Header().Get("Location")
	require.Contains(t, location, "client_id=client-id")
	require.Contains(t, location, "state=")

	var stateCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauth_state" {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)
	require.Contains(t, location, "state="+stateCookie.Value)
}

func TestCallbackCreatesUserAndSession(t *testing.T) {
	t.Parallel()

	users := newFakeUsers()
	h := newOAuthHandler(t, users)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=xyz&code=authcode", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rr := httptest.NewRecorder()
	h.Callback(rr, req)

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "https://donate.example.org", rr.Header().Get("Location"))
	require.Equal(t, []string{"ada@example.org"}, users.created)

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "donate_session" {
			session = c
		}
	}
	require.NotNil(t, session)

	userID, err := h.Sessions.Get(context.Background(), session.Value)
	require.NoError(t, err)
	require.Equal(t, "u-ada@example.org", userID)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	t.Parallel()

	users := newFakeUsers()
	h := newOAuthHandler(t, users)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=evil&code=authcode", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rr := httptest.NewRecorder()
	h.Callback(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, users.created)
}

func TestLoginUnconfigured(t *testing.T) {
	t.Parallel()

	h := &auth.Handler{Logger: zerolog.Nop()}
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRequireAuthAndMe(t *testing.T) {
	t.Parallel()

	users := newFakeUsers()
	account, err := users.FindOrCreateByEmail(context.Background(), "grace@example.org", "Grace")
	require.NoError(t, err)

	h := newOAuthHandler(t, users)
	sessionID, err := h.Sessions.Create(context.Background(), account.ID)
	require.NoError(t, err)

	protected := h.RequireAuth(http.HandlerFunc(h.Me))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "donate_session", Value: sessionID})
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "grace@example.org")

	// No cookie at all.
	rr2 := httptest.NewRecorder()
	protected.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr2.Code)

	// Unknown session id.
	req3 := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req3.AddCookie(&http.Cookie{Name: "donate_session", Value: "bogus"})
	rr3 := httptest.NewRecorder()
	protected.ServeHTTP(rr3, req3)
	require.Equal(t, http.StatusUnauthorized, rr3.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	t.Parallel()

	h := newOAuthHandler(t, newFakeUsers())
	sessionID, err := h.Sessions.Create(context.Background(), "u-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "donate_session", Value: sessionID})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, err = h.Sessions.Get(context.Background(), sessionID)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
}
