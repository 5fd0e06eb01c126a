package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/auth"
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/events"
	"github.com/fyrsmithlabs/tradetally/internal/storage"
	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

const maxListLimit = 500

func mustUser(c echo.Context) (auth.User, error) {
	u, ok := auth.UserFromContext(c)
	if !ok {
		return auth.User{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return u, nil
}

// handleMe returns the layout view, provisioning the customer record.
func (s *Server) handleMe(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}
	m, err := s.billing.MembershipOf(c.Request().Context(), u.ID)
	if err != nil {
		s.logger.Warn(c.Request().Context(), "membership lookup failed", zap.Error(err))
		m = billing.MembershipFree
	}
	return c.JSON(http.StatusOK, auth.MeView(u, m))
}

// handleListTrades lists the user's trades, newest first. Optional from
// and to (RFC 3339) bound the listing; limit caps it.
func (s *Server) handleListTrades(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}

	filter := storage.ListFilter{Order: storage.OrderDesc}
	if filter.From, err = parseTimeParam(c, "from"); err != nil {
		return err
	}
	if filter.To, err = parseTimeParam(c, "to"); err != nil {
		return err
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		filter.Limit = min(n, maxListLimit)
	}
	if c.QueryParam("order") == string(storage.OrderAsc) {
		filter.Order = storage.OrderAsc
	}

	trades, err := s.store.ListTrades(c.Request().Context(), u.ID, filter)
	if err != nil {
		return s.toHTTPError(c, err, "failed to list trades")
	}
	if trades == nil {
		trades = []trade.Trade{}
	}
	return c.JSON(http.StatusOK, TradeListResponse{Trades: trades})
}

func parseTimeParam(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

// handleCreateTrade saves a journal entry from a form draft.
func (s *Server) handleCreateTrade(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}

	var draft trade.Draft
	if err := c.Bind(&draft); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid trade request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	t, err := draft.Normalize(u.ID, s.now())
	if err != nil {
		return s.toHTTPError(c, err, "failed to validate trade")
	}
	if t.ScreenshotURL, err = s.blobs.Reference(u.ID, t.ScreenshotURL); err != nil {
		return s.toHTTPError(c, &trade.ValidationError{
			Field:  "screenshot_url",
			Reason: "must reference one of your own screenshots",
		}, "failed to validate trade")
	}

	ctx := c.Request().Context()
	saved, err := s.store.CreateTrade(ctx, *t)
	if err != nil {
		return s.toHTTPError(c, err, "failed to save trade")
	}

	s.metrics.TradesCreated.Inc()
	events.Emit(ctx, s.publisher, s.logger, events.TypeTradeCreated, u.ID, map[string]string{
		"trade_id": saved.ID,
		"symbol":   saved.Symbol,
	})
	return c.JSON(http.StatusCreated, saved)
}

// handleGetTrade returns one trade with a freshly signed screenshot URL.
func (s *Server) handleGetTrade(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}
	t, err := s.store.GetTrade(c.Request().Context(), u.ID, c.Param("id"))
	if err != nil {
		return s.toHTTPError(c, err, "failed to load trade")
	}
	t.ScreenshotURL = s.blobs.Resolve(c.Request().Context(), u.ID, t.ScreenshotURL)
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTrade(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := s.store.DeleteTrade(ctx, u.ID, id); err != nil {
		return s.toHTTPError(c, err, "failed to delete trade")
	}
	events.Emit(ctx, s.publisher, s.logger, events.TypeTradeDeleted, u.ID, map[string]string{"trade_id": id})
	return c.NoContent(http.StatusNoContent)
}
