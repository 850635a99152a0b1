package redis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionName = "sigma-session"

var (
	testHashKey  = []byte("0123456789abcdef0123456789abcdef")
	testBlockKey = []byte("fedcba9876543210fedcba9876543210")
)

func newTestSessionStore(t *testing.T) (*SessionStore, func() []string) {
	t.Helper()
	client := setupTestClient(t, nil)
	store := NewSessionStore(client, sessions.Options{Path: "/", MaxAge: 3600, HttpOnly: true}, testHashKey, testBlockKey)
	keys := func() []string {
		keys, err := client.Keys(context.Background(), sessionKeyPrefix+"*").Result()
		require.NoError(t, err)
		return keys
	}
	return store, keys
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func saveSession(t *testing.T, store *SessionStore, session *sessions.Session, req *http.Request) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, session))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store, keys := newTestSessionStore(t)

	session, err := store.New(requestWith(), testSessionName)
	require.NoError(t, err)
	assert.True(t, session.IsNew)
	session.Values["identity"] = `{"id":"123"}`

	cookie := saveSession(t, store, session, requestWith())
	assert.Len(t, keys(), 1)

	loaded, err := store.New(requestWith(cookie), testSessionName)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, `{"id":"123"}`, loaded.Values["identity"])
}

func TestSessionStore_CookieCarriesOnlyTheID(t *testing.T) {
	store, _ := newTestSessionStore(t)

	session, err := store.New(requestWith(), testSessionName)
	require.NoError(t, err)
	session.AddFlash("Your password is: Xy7pQ2mN4k", "flash_success")
	cookie := saveSession(t, store, session, requestWith())

	assert.NotContains(t, cookie.Value, "Xy7pQ2mN4k")

	var id string
	require.NoError(t, securecookie.DecodeMulti(testSessionName, cookie.Value, &id, store.Codecs...))
	assert.Equal(t, session.ID, id)
}

func TestSessionStore_ConsumedFlashIsGoneForReplayedCookie(t *testing.T) {
	store, _ := newTestSessionStore(t)

	session, err := store.New(requestWith(), testSessionName)
	require.NoError(t, err)
	session.AddFlash("Xy7pQ2mN4k", "flash_success")
	cookie := saveSession(t, store, session, requestWith())

	first, err := store.New(requestWith(cookie), testSessionName)
	require.NoError(t, err)
	assert.Equal(t, []any{"Xy7pQ2mN4k"}, first.Flashes("flash_success"))
	saveSession(t, store, first, requestWith(cookie))

	replayed, err := store.New(requestWith(cookie), testSessionName)
	require.NoError(t, err)
	assert.Empty(t, replayed.Flashes("flash_success"))
}

func TestSessionStore_NegativeMaxAgeDeletes(t *testing.T) {
	store, keys := newTestSessionStore(t)

	session, err := store.New(requestWith(), testSessionName)
	require.NoError(t, err)
	session.Values["k"] = "v"
	cookie := saveSession(t, store, session, requestWith())
	require.Len(t, keys(), 1)

	loaded, err := store.New(requestWith(cookie), testSessionName)
	require.NoError(t, err)
	loaded.Options.MaxAge = -1
	expired := saveSession(t, store, loaded, requestWith(cookie))

	assert.Less(t, expired.MaxAge, 0)
	assert.Empty(t, keys())

	// The old cookie now opens an empty new session.
	again, err := store.New(requestWith(cookie), testSessionName)
	require.NoError(t, err)
	assert.True(t, again.IsNew)
	assert.Empty(t, again.ID)
	assert.Empty(t, again.Values)
}

func TestSessionStore_TTLFollowsMaxAge(t *testing.T) {
	client := setupTestClient(t, nil)
	store := NewSessionStore(client, sessions.Options{Path: "/", MaxAge: 60}, testHashKey, testBlockKey)
	ctx := context.Background()

	session, err := store.New(requestWith(), testSessionName)
	require.NoError(t, err)
	saveSession(t, store, session, requestWith())

	ttl, err := client.TTL(ctx, sessionKey(session.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestSessionStore_TamperedCookie(t *testing.T) {
	store, _ := newTestSessionStore(t)

	session, err := store.New(requestWith(&http.Cookie{Name: testSessionName, Value: "forged"}), testSessionName)
	assert.Error(t, err)
	require.NotNil(t, session)
	assert.True(t, session.IsNew)
	assert.Empty(t, session.ID)
}
