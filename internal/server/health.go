package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// healthResponse reports liveness plus the degraded flag. Degraded is not an
// error state: the server keeps answering with empty detections.
type healthResponse struct {
	Status      string `json:"status"`
	ModelsReady bool   `json:"models_ready"`
	Reason      string `json:"reason,omitempty"`
}

// health handles GET /api/health. Models load lazily, so not-ready without a
// failed attempt is still healthy.
func (s *Server) health(c echo.Context) error {
	degraded, reason := s.svc.Degraded()

	resp := healthResponse{Status: "healthy", ModelsReady: s.svc.Status().Models.Ready}
	if degraded {
		resp.Status = "degraded"
		resp.Reason = reason
	}
	return c.JSON(http.StatusOK, resp)
}
