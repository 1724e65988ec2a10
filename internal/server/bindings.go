package server

// Request payloads. Validation tags are enforced by echo's Validator before
// any handler logic runs.

// ProcessAttendanceRequest triggers one attendance run. Images are base64
// JPEG/PNG/WebP payloads, optionally data URLs. SessionID is optional: a
// client that wants live WebSocket progress picks its own id up front.
type ProcessAttendanceRequest struct {
	SessionID  string   `json:"session_id" validate:"omitempty,max=64"`
	Images     []string `json:"images" validate:"required,min=1,max=30"`
	Department string   `json:"department" validate:"required,max=32"`
	BatchYear  int      `json:"batch_year" validate:"required,gte=2000,lte=2100"`
	Sections   []string `json:"sections" validate:"omitempty,dive,required,max=8"`
	Threshold  float64  `json:"threshold" validate:"omitempty,gt=0,lt=1"`
}

// DecisionPayload is one final presence verdict. Present is a pointer so an
// explicit false survives required-validation.
type DecisionPayload struct {
	RegisterNumber string `json:"register_number" validate:"required,max=32"`
	Present        *bool  `json:"present" validate:"required"`
}

// SubmitAttendanceRequest finalizes a session.
type SubmitAttendanceRequest struct {
	SessionID   string            `json:"session_id" validate:"required,max=64"`
	Decisions   []DecisionPayload `json:"decisions" validate:"required,min=1,dive"`
	SubmittedBy string            `json:"submitted_by" validate:"omitempty,max=64"`
	Period      string            `json:"period" validate:"omitempty,max=64"`
	Notes       string            `json:"notes" validate:"omitempty,max=1024"`
}

// InvalidateCacheRequest drops cached galleries: either one cohort or all.
type InvalidateCacheRequest struct {
	All        bool   `json:"all"`
	Department string `json:"department" validate:"omitempty,max=32"`
	BatchYear  int    `json:"batch_year" validate:"omitempty,gte=2000,lte=2100"`
}
