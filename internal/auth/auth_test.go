package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

const testSecret = "test-session-secret"

func mustToken(t *testing.T, u User) string {
	t.Helper()
	token, err := IssueToken(testSecret, "tradetally", u, time.Hour)
	require.NoError(t, err)
	return token
}

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}, "Ada Lovelace"},
		{User{FirstName: "Ada", Username: "ada"}, "Ada"},
		{User{LastName: "Lovelace", Username: "ada"}, "ada"},
		{User{}, "User"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}

func TestVerifier_RoundTrip(t *testing.T) {
	v, err := NewVerifier(testSecret, "tradetally")
	require.NoError(t, err)

	in := User{ID: "user_1", FirstName: "Ada", Email: "ada@example.com", ImageURL: "https://img.example.com/a.png"}
	got, err := v.Verify(mustToken(t, in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestVerifier_Rejects(t *testing.T) {
	v, err := NewVerifier(testSecret, "tradetally")
	require.NoError(t, err)

	otherIssuer, err := IssueToken(testSecret, "someone-else", User{ID: "u"}, time.Hour)
	require.NoError(t, err)
	wrongSecret, err := IssueToken("other-secret", "tradetally", User{ID: "u"}, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u", Issuer: "tradetally",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "tradetally", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"other issuer": otherIssuer,
		"wrong secret": wrongSecret,
		"no expiry":    noExpiry,
		"no subject":   noSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}

	t.Run("expired", func(t *testing.T) {
		token := mustToken(t, User{ID: "u"})
		v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { v.now = time.Now }()
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestIssueToken_Validates(t *testing.T) {
	_, err := IssueToken("", "i", User{ID: "u"}, time.Hour)
	assert.Error(t, err)
	_, err = IssueToken("s", "i", User{}, time.Hour)
	assert.Error(t, err)
	_, err = IssueToken("s", "i", User{ID: "u"}, 0)
	assert.Error(t, err)
	_, err = NewVerifier("", "i")
	assert.Error(t, err)
}

func newEcho(t *testing.T, mw ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.GET("/private", func(c echo.Context) error {
		u, ok := UserFromContext(c)
		if !ok {
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		assert.Equal(t, u.ID, logging.UserIDFromContext(c.Request().Context()))
		return c.String(http.StatusOK, u.ID)
	}, mw...)
	return e
}

func TestRequire(t *testing.T) {
	v, err := NewVerifier(testSecret, "tradetally")
	require.NoError(t, err)
	e := newEcho(t, Require(v))
	token := mustToken(t, User{ID: "user_1"})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user_1", rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"message":"authentication required"}`, rec.Body.String())
	})

	t.Run("basic scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Basic "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

type stubLookup struct {
	membership billing.Membership
	err        error
	calls      int
}

func (s *stubLookup) MembershipOf(context.Context, string) (billing.Membership, error) {
	s.calls++
	return s.membership, s.err
}

func TestRequireMembership(t *testing.T) {
	v, err := NewVerifier(testSecret, "tradetally")
	require.NoError(t, err)
	token := mustToken(t, User{ID: "user_1"})

	do := func(lookup MembershipLookup) *httptest.ResponseRecorder {
		e := newEcho(t, Require(v), RequireMembership(lookup, billing.MembershipPro, nil))
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do(&stubLookup{membership: billing.MembershipPro})
	assert.Equal(t, http.StatusOK, rec.Code)

	free := &stubLookup{membership: billing.MembershipFree}
	rec = do(free)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"upgrade_required"}`, rec.Body.String())
	assert.Equal(t, 1, free.calls)

	rec = do(&stubLookup{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMeView(t *testing.T) {
	me := MeView(User{ID: "u", Username: "trader", Email: "t@example.com"}, "")
	assert.Equal(t, "trader", me.Name)
	assert.Equal(t, billing.MembershipFree, me.Membership)

	me = MeView(User{ID: "u"}, billing.MembershipPro)
	assert.Equal(t, "User", me.Name)
	assert.Equal(t, billing.MembershipPro, me.Membership)
}
