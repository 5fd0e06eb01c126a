package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

const (
	userKey       = "auth.user"
	membershipKey = "auth.membership"
)

// MembershipLookup resolves a user's tier, provisioning the customer on
// first access.
type MembershipLookup interface {
	MembershipOf(ctx context.Context, userID string) (billing.Membership, error)
}

// Require rejects requests without a valid session and stores the user on
// the echo context.
func Require(v *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := v.Verify(tokenFrom(c.Request()))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			c.Set(userKey, user)

			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithUserID(req.Context(), user.ID)))
			return next(c)
		}
	}
}

// RequireMembership rejects users below tier with 403 upgrade_required.
// It must run after Require.
func RequireMembership(lookup MembershipLookup, tier billing.Membership, logger *logging.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := UserFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			ctx := c.Request().Context()
			m, err := lookup.MembershipOf(ctx, user.ID)
			if err != nil {
				logger.Error(ctx, "membership lookup failed", zap.Error(err))
				return echo.NewHTTPError(http.StatusInternalServerError, "membership lookup failed")
			}
			if !m.AtLeast(tier) {
				return echo.NewHTTPError(http.StatusForbidden, "upgrade_required")
			}
			c.Set(membershipKey, m)
			return next(c)
		}
	}
}

// UserFromContext returns the user stored by Require.
func UserFromContext(c echo.Context) (User, bool) {
	u, ok := c.Get(userKey).(User)
	return u, ok
}

// tokenFrom reads the bearer token, falling back to the session cookie.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Me is the layout view of the signed-in user.
type Me struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Email      string             `json:"email,omitempty"`
	AvatarURL  string             `json:"avatarUrl,omitempty"`
	Membership billing.Membership `json:"membership"`
}

// MeView builds the layout view of u.
func MeView(u User, m billing.Membership) Me {
	return Me{
		ID:         u.ID,
		Name:       u.DisplayName(),
		Email:      u.Email,
		AvatarURL:  u.ImageURL,
		Membership: m.OrFree(),
	}
}
