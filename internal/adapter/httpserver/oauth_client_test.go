package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shithost/sigma-dash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeDiscord(t *testing.T, userStatus int, userBody string) *discordOAuthClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "good-code", r.Form.Get("code"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		assert.Equal(t, "client-secret", r.Form.Get("client_secret"))
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":604800,"scope":"identify email"}`))
	})
	mux.HandleFunc("/api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userStatus)
		_, _ = w.Write([]byte(userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := newDiscordOAuthClient("client-id", "client-secret", "http://localhost/auth/discord/callback")
	client.conf.Endpoint.TokenURL = srv.URL + "/api/oauth2/token"
	client.userInfoURL = srv.URL + "/api/users/@me"
	return client
}

func TestDiscordAuthCodeURL(t *testing.T) {
	client := newDiscordOAuthClient("client-id", "client-secret", "http://localhost/auth/discord/callback")

	u, err := url.Parse(client.AuthCodeURL("state-123"))
	require.NoError(t, err)

	assert.Equal(t, "discord.com", u.Host)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "identify email", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost/auth/discord/callback", q.Get("redirect_uri"))
}

func TestDiscordExchange(t *testing.T) {
	client := newFakeDiscord(t, http.StatusOK,
		`{"id":"123","username":"sigma","global_name":"Sigma","avatar":"abc","email":"a@b.com","verified":true}`)

	identity, err := client.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, &domain.Identity{
		ID:       "123",
		Username: "Sigma",
		Avatar:   "abc",
		Email:    "a@b.com",
		Emails:   []domain.Email{{Value: "a@b.com", Verified: true}},
		Provider: "discord",
	}, identity)
}

func TestDiscordExchange_NoEmailScope(t *testing.T) {
	client := newFakeDiscord(t, http.StatusOK, `{"id":"123","username":"sigma"}`)

	identity, err := client.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "sigma", identity.Username)
	assert.Empty(t, identity.Emails)
	_, ok := identity.PrimaryEmail()
	assert.False(t, ok)
}

func TestDiscordExchange_UserInfoFailure(t *testing.T) {
	client := newFakeDiscord(t, http.StatusUnauthorized, `{"message":"401: Unauthorized"}`)

	_, err := client.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}
