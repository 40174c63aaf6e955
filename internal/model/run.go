package model

import "time"

// RunStatus is the lifecycle state of an analysis run:
//
//	running → complete | failed
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one submission and its outcome. It carries only JSON tags; the
// repositories map it to storage themselves. ResumeURL is never stored; it is
// presigned on read.
type Run struct {
	ID             string          `json:"id"`
	Status         RunStatus       `json:"status"`
	ResumeFilename string          `json:"resume_filename"`
	ResumeKey      string          `json:"resume_key,omitempty"`
	ResumeURL      string          `json:"resume_url,omitempty"`
	JobURL         string          `json:"job_url"`
	Mode           AnalysisMode    `json:"analysis_option"`
	Analysis       *AnalysisResult `json:"analysis,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
