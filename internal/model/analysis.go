package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// StorageReference is an opaque key addressing a blob in the object store.
type StorageReference string

func (r StorageReference) String() string { return string(r) }

// AnalysisMode selects the scoring behaviour the remote analyzer applies.
// The values are the labels the analyzer expects on the wire.
type AnalysisMode string

const (
	ModeQuickScan        AnalysisMode = "Quick Scan"
	ModeDetailedAnalysis AnalysisMode = "Detailed Analysis"
	ModeATSOptimization  AnalysisMode = "ATS Optimization"
)

// AnalysisModes lists the supported modes in presentation order.
var AnalysisModes = []AnalysisMode{ModeQuickScan, ModeDetailedAnalysis, ModeATSOptimization}

var ErrInvalidMode = errors.New("analysis mode is invalid")

// ParseAnalysisMode accepts the wire label or an identifier such as "ats_optimization",
// ignoring case and separators.
func ParseAnalysisMode(raw string) (AnalysisMode, error) {
	normalized := normalizeMode(raw)
	if normalized == "" {
		return "", errors.New("analysis mode is required")
	}
	switch normalized {
	case "quickscan", "quick":
		return ModeQuickScan, nil
	case "detailedanalysis", "detailed":
		return ModeDetailedAnalysis, nil
	case "atsoptimization", "ats":
		return ModeATSOptimization, nil
	default:
		return "", ErrInvalidMode
	}
}

// Valid reports whether m is one of the supported modes.
func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeQuickScan, ModeDetailedAnalysis, ModeATSOptimization:
		return true
	}
	return false
}

func normalizeMode(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
}

// AnalysisRequest is what the analyzer receives once both fan-out branches succeeded.
type AnalysisRequest struct {
	ResumeText         string       `json:"resume_text"`
	JobDescriptionText string       `json:"job_description"`
	AnalysisMode       AnalysisMode `json:"analysis_option"`
}

var (
	ErrEmptyResumeText = errors.New("resume text is empty")
	ErrEmptyJobText    = errors.New("job description text is empty")
)

// NewAnalysisRequest refuses to build a request around empty text.
func NewAnalysisRequest(resumeText, jobText string, mode AnalysisMode) (AnalysisRequest, error) {
	if strings.TrimSpace(resumeText) == "" {
		return AnalysisRequest{}, ErrEmptyResumeText
	}
	if strings.TrimSpace(jobText) == "" {
		return AnalysisRequest{}, ErrEmptyJobText
	}
	if !mode.Valid() {
		return AnalysisRequest{}, ErrInvalidMode
	}
	return AnalysisRequest{
		ResumeText:         resumeText,
		JobDescriptionText: jobText,
		AnalysisMode:       mode,
	}, nil
}

// AnalysisResult is the analyzer payload, passed through unmodified.
type AnalysisResult struct {
	Raw json.RawMessage
}

// NewTextResult wraps plain text as a JSON string payload.
func NewTextResult(text string) AnalysisResult {
	b, _ := json.Marshal(text)
	return AnalysisResult{Raw: b}
}

// Empty reports whether the payload carries nothing worth presenting:
// absent, null, an empty string, object or array.
func (r AnalysisResult) Empty() bool {
	trimmed := bytes.TrimSpace(r.Raw)
	switch string(trimmed) {
	case "", "null", `""`, "{}", "[]":
		return true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// String renders a JSON string payload as its text and anything else as raw JSON.
func (r AnalysisResult) String() string {
	var s string
	if err := json.Unmarshal(r.Raw, &s); err == nil {
		return s
	}
	return string(r.Raw)
}

func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

func (r *AnalysisResult) UnmarshalJSON(b []byte) error {
	r.Raw = append(r.Raw[:0], b...)
	return nil
}

// TaskResult is the outcome of one fan-out branch: a value or an error, never both.
type TaskResult[T any] struct {
	Value T
	Err   error
}

func Ok[T any](v T) TaskResult[T] {
	return TaskResult[T]{Value: v}
}

func Failed[T any](err error) TaskResult[T] {
	return TaskResult[T]{Err: err}
}

func (r TaskResult[T]) IsOk() bool {
	return r.Err == nil
}
