package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"resumeboost/internal/config"
	"resumeboost/internal/storage"
	"resumeboost/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAll(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		body     string
		size     int64
		getErr   error
		maxBytes int64
		want     string
		wantErr  error
	}{
		{name: "within limit", body: "hello", size: 5, maxBytes: 10, want: "hello"},
		{name: "no limit", body: "hello world", size: 11, maxBytes: 0, want: "hello world"},
		{name: "declared size too large", body: "hello world", size: 11, maxBytes: 5, wantErr: storage.ErrObjectTooLarge},
		{name: "unknown size too large", body: "hello world", size: -1, maxBytes: 5, wantErr: storage.ErrObjectTooLarge},
		{name: "get fails", getErr: errors.New("no such key"), maxBytes: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mocks.MockStorage)
			if tt.getErr != nil {
				store.On("Get", ctx, "k").Return(nil, storage.ObjectInfo{}, tt.getErr)
			} else {
				store.On("Get", ctx, "k").Return(io.NopCloser(strings.NewReader(tt.body)), storage.ObjectInfo{Key: "k", Size: tt.size}, nil)
			}

			got, err := storage.ReadAll(ctx, store, "k", tt.maxBytes)
			switch {
			case tt.getErr != nil:
				assert.ErrorIs(t, err, tt.getErr)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, string(got))
			}
			store.AssertExpectations(t)
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "cv.pdf", want: "cv.pdf"},
		{in: "  my cv.pdf ", want: "my cv.pdf"},
		{in: "dir/cv.pdf", want: "dir_cv.pdf"},
		{in: `dir\cv.pdf`, want: "dir_cv.pdf"},
		{in: "cv..final.pdf", want: "cv..final.pdf"},
		{in: "...pdf", want: "...pdf"},
		{in: "../etc/passwd", wantErr: true},
		{in: `..\cv.pdf`, wantErr: true},
		{in: "dir/./cv.pdf", wantErr: true},
		{in: "..", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := storage.SanitizeFileName(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrInvalidFileName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResumeKey(t *testing.T) {
	a, err := storage.ResumeKey("run-1", "cv.pdf")
	require.NoError(t, err)
	b, err := storage.ResumeKey("run-2", "cv.pdf")
	require.NoError(t, err)

	assert.Equal(t, "resumes/run-1_cv.pdf", a)
	assert.NotEqual(t, a, b)

	c, err := storage.ResumeKey("run-1", "cv..final.pdf")
	require.NoError(t, err)
	assert.Equal(t, "resumes/run-1_cv..final.pdf", c)

	_, err = storage.ResumeKey("run-1", "..")
	assert.Error(t, err)
}

func TestParsedResumeKey(t *testing.T) {
	assert.Equal(t, "parsed_resumes/run-1_cv.txt", storage.ParsedResumeKey("resumes/run-1_cv.pdf"))
	assert.Equal(t, "parsed_resumes/resume.txt", storage.ParsedResumeKey("resume.tar.gz"))
	assert.Equal(t, "parsed_resumes/noext.txt", storage.ParsedResumeKey("resumes/noext"))
}

func TestScrapedContentKey(t *testing.T) {
	key := storage.ScrapedContentKey("run-1", "https://jobs.example.com/a?b=c")
	assert.True(t, strings.HasPrefix(key, "scraped_content/run-1/"))
	assert.NotContains(t, strings.TrimPrefix(key, "scraped_content/run-1/"), "/")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := storage.New(context.Background(), config.StorageConfig{Driver: "gcs", Bucket: "b"})
	assert.ErrorContains(t, err, "unsupported storage driver")

	_, err = storage.New(context.Background(), config.StorageConfig{Driver: config.DriverMinIO})
	assert.ErrorContains(t, err, "bucket is required")
}
