package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/tradetally/internal/calendar"
	"github.com/fyrsmithlabs/tradetally/internal/overview"
	"github.com/fyrsmithlabs/tradetally/internal/storage"
)

// handleOverview aggregates the user's trades over ?range=.
func (s *Server) handleOverview(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}

	now := s.now()
	r := overview.ParseRange(c.QueryParam("range"))
	trades, err := s.store.ListTrades(c.Request().Context(), u.ID, storage.ListFilter{
		From:  r.Start(now, s.config.Location),
		Order: storage.OrderAsc,
	})
	if err != nil {
		return s.toHTTPError(c, err, "failed to load overview")
	}
	return c.JSON(http.StatusOK, overview.Compute(r, trades, now, s.config.Location))
}

// handleCalendar returns the trades of the day, week or month around
// ?anchor=.
func (s *Server) handleCalendar(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}

	loc := s.config.Location
	anchor, err := calendar.ParseAnchor(c.QueryParam("anchor"), s.now(), loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	view := calendar.ParseView(c.QueryParam("view"))
	start, end := calendar.Window(view, anchor, loc)

	trades, err := s.store.ListTrades(c.Request().Context(), u.ID, storage.ListFilter{
		From:  start,
		To:    end,
		Order: storage.OrderAsc,
	})
	if err != nil {
		return s.toHTTPError(c, err, "failed to load calendar")
	}
	return c.JSON(http.StatusOK, calendar.RangeView(view, anchor, trades, loc))
}

// handleCalendarMonth returns the month grid around ?anchor=.
func (s *Server) handleCalendarMonth(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}

	loc := s.config.Location
	anchor, err := calendar.ParseAnchor(c.QueryParam("anchor"), s.now(), loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, end := calendar.MonthGrid(anchor, loc)

	trades, err := s.store.ListTrades(c.Request().Context(), u.ID, storage.ListFilter{
		From:  start,
		To:    end,
		Order: storage.OrderAsc,
	})
	if err != nil {
		return s.toHTTPError(c, err, "failed to load calendar")
	}
	return c.JSON(http.StatusOK, calendar.Month(anchor, trades, loc))
}
