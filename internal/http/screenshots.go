package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/blob"
)

const journalPath = "/dashboard/journal"

// handleUploadScreenshot stores a chart screenshot, signs it, and returns
// the journal form location plus the extracted fields when a model is
// configured. Extraction failures never fail the upload.
func (s *Server) handleUploadScreenshot(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	fh, err := c.FormFile("file")
	if err != nil {
		s.metrics.ScreenshotsUploaded.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "no file uploaded")
	}
	if fh.Size > blob.MaxUploadSize {
		s.metrics.ScreenshotsUploaded.WithLabelValues("rejected").Inc()
		return s.toHTTPError(c, blob.ErrTooLarge, "failed to upload screenshot")
	}
	f, err := fh.Open()
	if err != nil {
		return s.toHTTPError(c, err, "failed to read upload")
	}
	defer f.Close()

	obj, err := s.blobs.Put(ctx, u.ID, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		s.metrics.ScreenshotsUploaded.WithLabelValues("rejected").Inc()
		return s.toHTTPError(c, err, "failed to upload screenshot")
	}
	signed, err := s.blobs.SignedURL(ctx, obj.Key, 0)
	if err != nil {
		s.metrics.ScreenshotsUploaded.WithLabelValues("error").Inc()
		return s.toHTTPError(c, err, "failed to sign screenshot url")
	}

	resp := UploadResponse{
		Object:        obj,
		ScreenshotURL: signed,
		Redirect:      journalPath + "?screenshot=" + url.QueryEscape(signed),
	}

	if s.extractor.Available() {
		extracted, err := s.extractor.Extract(ctx, signed)
		if err != nil {
			s.logger.Warn(ctx, "screenshot extraction failed",
				zap.String("key", obj.Key),
				zap.Error(err))
		} else if extracted != nil {
			draft := extracted.Draft()
			draft.ScreenshotURL = signed
			resp.Extraction = extracted
			resp.Prefill = &draft
		}
	}

	s.metrics.ScreenshotsUploaded.WithLabelValues("ok").Inc()
	s.logger.Info(ctx, "screenshot uploaded",
		zap.String("key", obj.Key),
		zap.Int64("size", obj.Size),
		zap.Bool("extracted", resp.Extraction != nil))
	return c.JSON(http.StatusCreated, resp)
}

// handleSignedObject serves an object to holders of a valid signed URL.
func (s *Server) handleSignedObject(c echo.Context) error {
	ctx := c.Request().Context()
	if c.Param("bucket") != s.blobs.Bucket() {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if c.QueryParam("signature") == "" {
		return echo.NewHTTPError(http.StatusForbidden, "missing signature")
	}
	key, err := s.blobs.KeyFromURL(ctx, c.Request().URL)
	if err != nil {
		s.logger.Debug(ctx, "signed object rejected", zap.Error(err))
		if errors.Is(err, blob.ErrInvalidKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid object key")
		}
		return echo.NewHTTPError(http.StatusForbidden, "invalid or expired signature")
	}

	r, info, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return s.toHTTPError(c, err, "failed to open object")
	}
	defer r.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, info.ContentType)
	h.Set("Cache-Control", "private, max-age=3600")
	name := key[strings.LastIndex(key, "/")+1:]
	http.ServeContent(c.Response(), c.Request(), name, info.ModTime, r)
	return nil
}
