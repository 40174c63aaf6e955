package orchestrator

import (
	"errors"
	"strings"
)

// Kind classifies the failure site of a run.
type Kind string

const (
	KindValidation Kind = "validation"
	KindUpload     Kind = "upload"
	KindExtraction Kind = "extraction"
	KindScraping   Kind = "scraping"
	KindAnalysis   Kind = "analysis"
	KindUnexpected Kind = "unexpected"
)

// Sentinels for errors.Is matching on the kind of an *Error.
var (
	ErrValidation = errors.New("validation error")
	ErrUpload     = errors.New("upload error")
	ErrExtraction = errors.New("extraction error")
	ErrScraping   = errors.New("scraping error")
	ErrAnalysis   = errors.New("analysis error")
	ErrUnexpected = errors.New("unexpected error")
)

var sentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindUpload:     ErrUpload,
	KindExtraction: ErrExtraction,
	KindScraping:   ErrScraping,
	KindAnalysis:   ErrAnalysis,
	KindUnexpected: ErrUnexpected,
}

// Code is the upper-cased kind, used as the machine readable error code.
func (k Kind) Code() string {
	return strings.ToUpper(string(k))
}

// Error is the single terminal error of a failed run. Message is meant to be shown
// to the user as is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnexpected
}
