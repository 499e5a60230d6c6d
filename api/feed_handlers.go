package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"taskflow/domain"
	"taskflow/feed"
)

type listImagesResponse struct {
	Images []domain.ImageEntry `json:"images"`
}

func (h *handlers) listImages(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), h.Logger, feedListSpanName, "/api/feed", feedEventDomain, feedListEventName)
	c.SetRequest(c.Request().WithContext(ctx))
	var cause error
	defer func() {
		if cause == nil {
			cause = err
		}
		metrics.Log(c.Response().Status, cause)
	}()

	s := sessionFrom(c)
	ctrl := feed.NewController(s.UserKey, h.Feed, h.Events, h.Logger)

	loadStart := time.Now()
	images, loadErr := ctrl.Load(ctx)
	metrics.Observe("load", time.Since(loadStart))
	if loadErr != nil {
		metrics.SetErrorStage("storage")
		cause = loadErr
		return writeError(c, loadErr)
	}
	metrics.SetInt("images_returned", len(images))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, listImagesResponse{Images: images})
	metrics.Observe("encode", time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func (h *handlers) uploadImage(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), h.Logger, feedUploadSpanName, "/api/feed", feedEventDomain, feedUploadEventName)
	c.SetRequest(c.Request().WithContext(ctx))
	var cause error
	defer func() {
		if cause == nil {
			cause = err
		}
		metrics.Log(c.Response().Status, cause)
	}()

	s := sessionFrom(c)
	ctrl := feed.NewController(s.UserKey, h.Feed, h.Events, h.Logger)
	fail := func(stage string, reason error) error {
		metrics.SetErrorStage(stage)
		cause = reason
		if wantsHTML(c) {
			images, _ := ctrl.Load(ctx)
			return renderFailure(c, "feed", feedPage(s, images), reason)
		}
		return writeError(c, reason)
	}

	fh, ferr := c.FormFile("file")
	if ferr != nil {
		return fail("read_form", echo.NewHTTPError(http.StatusBadRequest, "missing file").SetInternal(ferr))
	}
	if fh.Size > h.MaxUploadSize {
		return fail("read_form", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large"))
	}
	f, ferr := fh.Open()
	if ferr != nil {
		return fail("read_form", ferr)
	}
	data, tooLarge, ferr := limitedReadAll(f, h.MaxUploadSize)
	_ = f.Close()
	if ferr != nil {
		return fail("read_form", ferr)
	}
	if tooLarge {
		return fail("read_form", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large"))
	}
	metrics.SetInt("upload_bytes", len(data))

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = http.DetectContentType(data)
	}

	caption := c.FormValue("caption")
	metrics.SetBool("has_caption", caption != "")

	uploadStart := time.Now()
	entry, uerr := ctrl.Upload(ctx, fh.Filename, contentType, data, caption)
	metrics.Observe("upload", time.Since(uploadStart))
	if uerr != nil {
		return fail("storage", uerr)
	}

	if wantsHTML(c) {
		err = c.Redirect(http.StatusSeeOther, "/feed")
		return err
	}
	err = c.JSON(http.StatusCreated, entry)
	return err
}
