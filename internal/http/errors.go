package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/blob"
	"github.com/fyrsmithlabs/tradetally/internal/storage"
	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

// toHTTPError maps domain errors onto API responses. Unknown errors are
// logged and reported as 500 without detail.
func (s *Server) toHTTPError(c echo.Context, err error, msg string) error {
	var ve *trade.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, blob.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	case errors.Is(err, billing.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, billing.ErrNoCustomer):
		return echo.NewHTTPError(http.StatusNotFound, "no stripe customer found for this user; complete a checkout first")
	case errors.Is(err, billing.ErrInvalidPaymentLink):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "billing is not configured")
	case errors.Is(err, blob.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds 25 MiB")
	case errors.Is(err, blob.ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "file must be an image")
	case errors.Is(err, blob.ErrEmpty):
		return echo.NewHTTPError(http.StatusBadRequest, "no file uploaded")
	case errors.Is(err, blob.ErrInvalidKey):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid object key")
	case errors.Is(err, blob.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusForbidden, "invalid or expired signature")
	default:
		ctx := c.Request().Context()
		s.logger.Error(ctx, msg, zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, msg)
	}
}
