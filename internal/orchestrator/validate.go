package orchestrator

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"resumeboost/internal/model"
)

const (
	msgMissingResume = "Please upload a PDF file."
	msgInvalidURL    = "Invalid URL! Please enter a valid job description URL starting with http:// or https://"
	msgInvalidMode   = "Please choose an analysis type: Quick Scan, Detailed Analysis or ATS Optimization."
)

// ValidateJobURL checks that raw, percent-decoded, is an absolute http(s) URL.
// It returns the trimmed raw URL: the decoded form is only used for the check, so
// escaped query values reach the job site unchanged.
func ValidateJobURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", newError(KindValidation, msgInvalidURL, err)
	}
	if !strings.HasPrefix(decoded, "http://") && !strings.HasPrefix(decoded, "https://") {
		return "", newError(KindValidation, msgInvalidURL, nil)
	}
	u, err := url.Parse(decoded)
	if err != nil {
		return "", newError(KindValidation, msgInvalidURL, err)
	}
	if u.Host == "" {
		return "", newError(KindValidation, msgInvalidURL, nil)
	}
	return trimmed, nil
}

// validate checks everything that can be checked without a remote call and
// returns the trimmed job URL.
func (o *Orchestrator) validate(in Input) (string, error) {
	if len(in.Resume) == 0 {
		return "", newError(KindValidation, msgMissingResume, nil)
	}
	if strings.TrimSpace(in.Filename) == "" || !strings.EqualFold(filepath.Ext(in.Filename), ".pdf") {
		return "", newError(KindValidation, msgMissingResume, nil)
	}
	if o.opts.MaxResumeBytes > 0 && int64(len(in.Resume)) > o.opts.MaxResumeBytes {
		return "", newError(KindValidation,
			fmt.Sprintf("Resume is too large: %d bytes, the limit is %d bytes.", len(in.Resume), o.opts.MaxResumeBytes), nil)
	}
	jobURL, err := ValidateJobURL(in.JobURL)
	if err != nil {
		return "", err
	}
	if !in.Mode.Valid() {
		return "", newError(KindValidation, msgInvalidMode, model.ErrInvalidMode)
	}
	return jobURL, nil
}
