package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// modelStatus handles GET /api/models/status.
func (s *Server) modelStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.Status())
}

// invalidateResponse reports how many cached galleries were dropped.
type invalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// invalidateCache handles POST /api/cache/invalidate. Enrollment changes call
// this so the next request reloads the gallery from disk.
func (s *Server) invalidateCache(c echo.Context) error {
	var req InvalidateCacheRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if req.All {
		return c.JSON(http.StatusOK, invalidateResponse{Invalidated: s.svc.InvalidateAllGalleries()})
	}

	if req.Department == "" || req.BatchYear == 0 {
		return badRequest(c, "department and batch_year are required unless all=true")
	}

	n := 0
	if s.svc.InvalidateGallery(req.Department, req.BatchYear) {
		n = 1
	}
	return c.JSON(http.StatusOK, invalidateResponse{Invalidated: n})
}
