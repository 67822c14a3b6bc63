package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"games_catalog/internal/config"
)

func newTestSessions() *SessionManager {
	return NewSessionManager(config.Session{
		Secret:     "0123456789abcdef0123",
		TTL:        time.Hour,
		CookieName: "sid",
	})
}

func TestContext(t *testing.T) {
	assert.True(t, FromContext(context.Background()).Anonymous())

	ctx := WithIdentity(context.Background(), Identity{UserID: 3, Username: "alice"})
	assert.Equal(t, Identity{UserID: 3, Username: "alice"}, FromContext(ctx))
}

func TestSessionManager_RoundTrip(t *testing.T) {
	m := newTestSessions()

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetCookie(rec, Identity{UserID: 7, Username: "bob"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	id, err := m.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 7, Username: "bob"}, id)
}

func TestSessionManager_Rejects(t *testing.T) {
	m := newTestSessions()

	t.Run("no cookie is anonymous", func(t *testing.T) {
		id, err := m.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NoError(t, err)
		assert.True(t, id.Anonymous())
	})

	t.Run("anonymous cannot be issued", func(t *testing.T) {
		_, err := m.Issue(Identity{})
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other := NewSessionManager(config.Session{Secret: "another-secret-of-16+"})
		token, err := other.Issue(Identity{UserID: 1, Username: "x"})
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := m.Issue(Identity{UserID: 1, Username: "x"})
		require.NoError(t, err)

		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { m.now = time.Now }()

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "1",
			"iss": issuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestSessionManager_ClearCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestSessions().ClearCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	ok, err := h.Compare(hash, "hunter22")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash, "hunter23")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare("not-a-hash", "hunter22")
	assert.Error(t, err)
}
