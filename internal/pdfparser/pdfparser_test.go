package pdfparser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"resumeboost/internal/storage"
	"resumeboost/internal/storage/mocks"
)

func newApp(h *Handler) *fiber.App {
	app := fiber.New()
	h.Register(app)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func pdfBody(data string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(data))
}

func TestParse_Success(t *testing.T) {
	store := new(mocks.MockStorage)
	store.On("Bucket").Return("resumes-bucket")
	store.On("Get", mock.Anything, "resumes/run1_cv.pdf").
		Return(pdfBody("%PDF-fake"), storage.ObjectInfo{Size: 9}, nil)

	var saved string
	store.On("Put", mock.Anything, "parsed_resumes/run1_cv.txt", mock.Anything,
		storage.PutObjectOptions{Size: 17, ContentType: "text/plain"}).
		Return(func(_ context.Context, _ string, r io.Reader, _ storage.PutObjectOptions) storage.ObjectInfo {
			b, _ := io.ReadAll(r)
			saved = string(b)
			return storage.ObjectInfo{Key: "parsed_resumes/run1_cv.txt"}
		}, nil)

	h := NewHandler(store, 1<<20, 0, nil)
	h.parse = func(data []byte) (string, error) {
		assert.Equal(t, "%PDF-fake", string(data))
		return "Jane Doe\nEngineer", nil
	}

	status, out := post(t, newApp(h), `{"s3_bucket":"resumes-bucket","s3_key":" resumes/run1_cv.pdf "}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "parsed_resumes/run1_cv.txt", out["s3_key"])
	assert.Equal(t, "Jane Doe\nEngineer", saved)
	store.AssertExpectations(t)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*mocks.MockStorage)
		parseErr   error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing key",
			body:       `{"s3_bucket":"resumes-bucket"}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "S3 key is missing",
		},
		{
			name:       "blank key",
			body:       `{"s3_key":"   "}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "S3 key is missing",
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "S3 key is missing",
		},
		{
			name:       "invalid json",
			body:       `{"s3_key":`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name: "foreign bucket",
			body: `{"s3_bucket":"other","s3_key":"resumes/a.pdf"}`,
			setup: func(s *mocks.MockStorage) {
				s.On("Bucket").Return("resumes-bucket")
			},
			wantStatus: fiber.StatusBadRequest,
			wantError:  "Unknown S3 bucket: other",
		},
		{
			name: "fetch fails",
			body: `{"s3_key":"resumes/a.pdf"}`,
			setup: func(s *mocks.MockStorage) {
				s.On("Get", mock.Anything, "resumes/a.pdf").Return(nil, storage.ObjectInfo{}, errors.New("NoSuchKey"))
			},
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "Error fetching PDF from S3: NoSuchKey",
		},
		{
			name: "parse fails",
			body: `{"s3_key":"resumes/a.pdf"}`,
			setup: func(s *mocks.MockStorage) {
				s.On("Get", mock.Anything, "resumes/a.pdf").Return(pdfBody("junk"), storage.ObjectInfo{Size: 4}, nil)
			},
			parseErr:   errors.New("malformed PDF: startxref not found"),
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "Error parsing PDF: malformed PDF: startxref not found",
		},
		{
			name: "save fails",
			body: `{"s3_key":"resumes/a.pdf"}`,
			setup: func(s *mocks.MockStorage) {
				s.On("Get", mock.Anything, "resumes/a.pdf").Return(pdfBody("%PDF"), storage.ObjectInfo{Size: 4}, nil)
				s.On("Put", mock.Anything, "parsed_resumes/a.txt", mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("AccessDenied"))
			},
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "Error saving parsed text to S3: AccessDenied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mocks.MockStorage)
			if tt.setup != nil {
				tt.setup(store)
			}
			h := NewHandler(store, 1<<20, 0, nil)
			h.parse = func([]byte) (string, error) {
				if tt.parseErr != nil {
					return "", tt.parseErr
				}
				return "text", nil
			}

			status, out := post(t, newApp(h), tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, out["error"])
			store.AssertExpectations(t)
		})
	}
}

func TestParse_TooLarge(t *testing.T) {
	store := new(mocks.MockStorage)
	store.On("Get", mock.Anything, "resumes/big.pdf").
		Return(pdfBody(strings.Repeat("x", 64)), storage.ObjectInfo{Size: 64}, nil)

	h := NewHandler(store, 16, 0, nil)
	status, out := post(t, newApp(h), `{"s3_key":"resumes/big.pdf"}`)

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.True(t, strings.HasPrefix(out["error"], "Error fetching PDF from S3: object too large"))
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractText_Invalid(t *testing.T) {
	_, err := ExtractText(nil)
	assert.ErrorIs(t, err, ErrEmptyPDF)

	_, err = ExtractText([]byte("this is not a pdf document"))
	assert.Error(t, err)
}
