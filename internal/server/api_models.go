package server

import (
	"time"

	"github.com/raysh454/compliscan/internal/app"
	"github.com/raysh454/compliscan/internal/model"
)

// CreateTargetRequest registers a URL for scanning.
type CreateTargetRequest = app.TargetInput

// StartScanRequest optionally selects the categories to scan. An empty body
// scans gdpr, accessibility and security.
type StartScanRequest struct {
	ScanOptions *model.ScanOptions `json:"scanOptions,omitempty"`
}

// ScheduleRequest creates or replaces a scheduled scan.
type ScheduleRequest = app.ScheduleInput

// CreateWebsiteRequest starts monitoring a website.
type CreateWebsiteRequest = app.WebsiteInput

// ToggleRequest pauses or resumes a scheduled scan or a website.
type ToggleRequest struct {
	IsActive *bool `json:"isActive" example:"true"`
}

// PreviewResponse lists upcoming fire times of a scheduled scan.
type PreviewResponse struct {
	Runs []time.Time `json:"runs"`
}

// ErrorBody carries the machine-readable code and a client-safe message.
type ErrorBody struct {
	Code    string `json:"code" example:"VALIDATION_ERROR"`
	Message string `json:"message" example:"at least one scan category must be enabled"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
