package storage

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// Key namespaces inside the bucket.
const (
	ResumePrefix         = "resumes/"
	ParsedResumePrefix   = "parsed_resumes/"
	ScrapedContentPrefix = "scraped_content/"
)

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName replaces path separators and rejects names with a "." or ".."
// path segment. Dots inside a segment, as in "cv..final.pdf", are kept.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	segments := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' })
	for _, seg := range segments {
		if seg == "." || seg == ".." {
			return "", ErrInvalidFileName
		}
	}
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", ErrInvalidFileName
	}
	return s, nil
}

// ResumeKey is where an uploaded resume lives. The run ID keeps uploads of the
// same file name from different runs apart.
func ResumeKey(runID, fileName string) (string, error) {
	clean, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return ResumePrefix + runID + "_" + clean, nil
}

// ParsedResumeKey derives the text key from the uploaded resume key:
// "resumes/abc_cv.pdf" becomes "parsed_resumes/abc_cv.txt".
func ParsedResumeKey(sourceKey string) string {
	base := path.Base(sourceKey)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return ParsedResumePrefix + base + ".txt"
}

// ScrapedContentKey holds the scraped text of jobURL for one run.
func ScrapedContentKey(runID, jobURL string) string {
	return ScrapedContentPrefix + runID + "/" + url.PathEscape(jobURL)
}
