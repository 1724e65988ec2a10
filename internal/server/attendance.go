package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"go-attendance-server/internal/service"
)

// processAttendance handles POST /api/attendance/process.
func (s *Server) processAttendance(c echo.Context) error {
	var req ProcessAttendanceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	rl := s.logger.StartRequest()
	defer rl.Commit()
	if req.SessionID != "" {
		rl.SetSession(req.SessionID)
	}
	rl.Printf("📸 Processing %d images for %s %d (sections %v)",
		len(req.Images), req.Department, req.BatchYear, req.Sections)

	result, err := s.svc.ProcessImages(c.Request().Context(), service.ProcessRequest{
		SessionID:  req.SessionID,
		Images:     decodeImages(req.Images),
		Department: req.Department,
		BatchYear:  req.BatchYear,
		Sections:   req.Sections,
		Threshold:  req.Threshold,
	})
	if err != nil {
		rl.Printf("❌ Processing failed: %v", err)
		return fail(c, err)
	}

	rl.SetSession(result.SessionID)
	rl.Printf("✅ %d faces across %d images, %d/%d present in %dms",
		result.TotalFaces, len(result.Images), result.PresentCount,
		result.PresentCount+result.AbsentCount, result.ElapsedMS)

	return c.JSON(http.StatusOK, result)
}

// submitAttendance handles POST /api/attendance/submit.
func (s *Server) submitAttendance(c echo.Context) error {
	var req SubmitAttendanceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	rl := s.logger.StartRequest()
	defer rl.Commit()
	rl.SetSession(req.SessionID)

	decisions := make([]service.Decision, len(req.Decisions))
	for i, d := range req.Decisions {
		decisions[i] = service.Decision{
			RegisterNumber: d.RegisterNumber,
			Present:        *d.Present,
		}
	}

	result, err := s.svc.SubmitAttendance(c.Request().Context(), service.SubmitRequest{
		SessionID:   req.SessionID,
		Decisions:   decisions,
		SubmittedBy: req.SubmittedBy,
		Period:      req.Period,
		Notes:       req.Notes,
	})
	if err != nil {
		rl.Printf("❌ Submit failed: %v", err)
		return fail(c, err)
	}

	rl.Printf("✅ Submitted %d decisions (%d edited)", len(result.Submissions), result.EditedCount)
	return c.JSON(http.StatusOK, result)
}

// sessionData handles GET /api/attendance/session/:id.
func (s *Server) sessionData(c echo.Context) error {
	data, err := s.svc.GetSessionData(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, data)
}

// annotatedImage handles GET /api/attendance/session/:id/image/:index.
func (s *Server) annotatedImage(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return badRequest(c, "image index must be a non-negative integer")
	}

	data, err := s.svc.AnnotatedImage(c.Request().Context(), c.Param("id"), index)
	if err != nil {
		return fail(c, err)
	}
	if len(data) == 0 {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "image slot has no annotated payload"})
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
