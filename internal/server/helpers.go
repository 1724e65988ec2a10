package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"go-attendance-server/internal/executor"
	"go-attendance-server/internal/imageio"
	"go-attendance-server/internal/store"
)

// requestValidator adapts go-playground/validator to echo's Validator hook.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// errorResponse is the JSON error envelope every handler returns.
type errorResponse struct {
	Error string `json:"error"`
}

// fail maps a service or store error onto an HTTP status and envelope.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, executor.ErrQueueFull):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// badRequest rejects a request before it reaches the service.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// decodeImages converts base64 payloads to raw bytes. A payload that fails
// base64 decoding becomes a nil slice so the pipeline records a per-image
// decode failure instead of the whole batch dying.
func decodeImages(payloads []string) [][]byte {
	images := make([][]byte, len(payloads))
	for i, p := range payloads {
		data, err := imageio.DecodeBase64(p)
		if err != nil {
			continue
		}
		images[i] = data
	}
	return images
}
