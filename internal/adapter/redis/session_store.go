package redis

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	goredis "github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

var sessionIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// SessionStore keeps session values in Redis, encoded with the same codecs as
// the cookie. The cookie itself only carries the session id, so every instance
// sees one copy of the session and a deleted key invalidates all copies of the cookie.
type SessionStore struct {
	rdb     goredis.Cmdable
	Codecs  []securecookie.Codec
	Options *sessions.Options
}

var _ sessions.Store = (*SessionStore)(nil)

// NewSessionStore takes key pairs like sessions.NewCookieStore.
func NewSessionStore(rdb goredis.Cmdable, opts sessions.Options, keyPairs ...[]byte) *SessionStore {
	s := &SessionStore{
		rdb:     rdb,
		Codecs:  securecookie.CodecsFromPairs(keyPairs...),
		Options: &opts,
	}
	for _, codec := range s.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(opts.MaxAge)
		}
	}
	return s
}

func (s *SessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New decodes the session id from the request cookie and loads its values.
// A missing Redis key yields an empty new session, not an error.
func (s *SessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.Codecs...); err != nil {
		session.ID = ""
		return session, fmt.Errorf("failed to decode session cookie: %w", err)
	}

	found, err := s.load(r.Context(), session)
	if err != nil {
		return session, err
	}
	if !found {
		session.ID = ""
		return session, nil
	}
	session.IsNew = false
	return session, nil
}

// Save writes the values with the session's MaxAge as TTL. MaxAge <= 0 deletes the key.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()

	if session.Options.MaxAge <= 0 {
		if session.ID != "" {
			if err := s.rdb.Del(ctx, sessionKey(session.ID)).Err(); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = sessionIDEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	}

	encodedValues, err := securecookie.EncodeMulti(session.Name(), session.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session values: %w", err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.rdb.Set(ctx, sessionKey(session.ID), encodedValues, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	encodedID, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session id: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encodedID, session.Options))
	return nil
}

func (s *SessionStore) load(ctx context.Context, session *sessions.Session) (bool, error) {
	data, err := s.rdb.Get(ctx, sessionKey(session.ID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if err := securecookie.DecodeMulti(session.Name(), data, &session.Values, s.Codecs...); err != nil {
		return false, fmt.Errorf("failed to decode session values: %w", err)
	}
	return true, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
