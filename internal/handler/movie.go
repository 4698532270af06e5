package handler // handler translates HTTP requests into movie service calls

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/movie-catalog/internal/asset"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/service"
)

// imageField is the multipart field carrying the attachment.
const imageField = "image"

// MovieHandler exposes the movie service over HTTP.
type MovieHandler struct {
	Svc            *service.MovieService
	NotFoundStatus int // 404 unless a legacy deployment asks for 401
	Log            zerolog.Logger
}

// NewMovieHandler constructs a MovieHandler and panics if svc is nil.
func NewMovieHandler(svc *service.MovieService, notFoundStatus int, log zerolog.Logger) *MovieHandler {
	if svc == nil {
		panic("nil service passed to NewMovieHandler")
	}
	if notFoundStatus == 0 {
		notFoundStatus = http.StatusNotFound
	}
	return &MovieHandler{Svc: svc, NotFoundStatus: notFoundStatus, Log: log}
}

// List handles GET /movies.
func (h *MovieHandler) List(c echo.Context) error {
	movies, err := h.Svc.List(c.Request().Context(), originOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Movie List", "data": movies})
}

// Get handles GET /movies/:id.
func (h *MovieHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	m, err := h.Svc.Get(c.Request().Context(), id, originOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Movie Detail", "data": m})
}

// Create handles POST /movies with a JSON, urlencoded or multipart body.
func (h *MovieHandler) Create(c echo.Context) error {
	fields, att, cleanup, err := readBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	defer cleanup()

	m, err := h.Svc.Create(c.Request().Context(), fields, att, originOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"message": "New Movie added successfully", "data": m})
}

// Update handles POST/PUT /movies/:id.  The body replaces every field of
// the movie.
func (h *MovieHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	fields, att, cleanup, err := readBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	defer cleanup()

	m, created, err := h.Svc.Update(c.Request().Context(), id, fields, att, originOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	if created {
		return c.JSON(http.StatusCreated, map[string]any{"message": "Movie created successfully", "data": m})
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Movie updated successfully", "data": m})
}

// Delete handles DELETE /movies/:id.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Movie deleted"})
}

// fail maps service errors onto status codes and error bodies.
func (h *MovieHandler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrMovieNotFound):
		return c.JSON(h.NotFoundStatus, map[string]string{"error": "Movie not found"})
	case errors.Is(err, service.ErrImageRequired), errors.Is(err, asset.ErrNoPayload):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No image uploaded"})
	case errors.Is(err, asset.ErrUploadFailed):
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("image upload failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to upload image"})
	case errors.Is(err, repository.ErrIDsExhausted):
		h.Log.Warn().Err(err).Str("path", c.Path()).Msg("no movie id left to assign")
		return c.JSON(http.StatusConflict, map[string]string{"error": "no movie id left to assign"})
	case errors.Is(err, repository.ErrCorruptStore):
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("movie document is corrupt")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "movie store is corrupt"})
	case errors.Is(err, repository.ErrStorageUnavailable):
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("movie document unavailable")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
	default:
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("unexpected error")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// originOf returns the scheme and host the request came in on.  Echo's
// Scheme honours X-Forwarded-Proto and friends.
func originOf(c echo.Context) asset.Origin {
	return asset.Origin{Scheme: c.Scheme(), Host: c.Request().Host}
}

// parseID reads a positive integer :id path parameter.
func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func noop() {}

// readBody extracts the movie fields and the optional image from the
// request.  The returned cleanup closes the uploaded file.
func readBody(c echo.Context) (model.Fields, *service.Attachment, func(), error) {
	req := c.Request()
	ctype, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))

	switch ctype {
	case echo.MIMEMultipartForm:
		form, err := c.MultipartForm()
		if err != nil {
			return nil, nil, noop, err
		}
		fields := model.FieldsFromForm(form.Value)
		files := form.File[imageField]
		if len(files) == 0 {
			return fields, nil, noop, nil
		}
		att, closeFn, err := openAttachment(files[0])
		if err != nil {
			return nil, nil, noop, err
		}
		return fields, att, closeFn, nil

	case echo.MIMEApplicationForm:
		params, err := c.FormParams()
		if err != nil {
			return nil, nil, noop, err
		}
		return model.FieldsFromForm(params), nil, noop, nil

	default:
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, nil, noop, err
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			return model.Fields{}, nil, noop, nil
		}
		fields, err := model.FieldsFromJSON(data)
		if err != nil {
			return nil, nil, noop, err
		}
		return fields, nil, noop, nil
	}
}

func openAttachment(fh *multipart.FileHeader) (*service.Attachment, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &service.Attachment{Body: f, Ext: filepath.Ext(fh.Filename)}, func() { _ = f.Close() }, nil
}
