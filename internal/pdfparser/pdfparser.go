package pdfparser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"resumeboost/internal/functions"
	"resumeboost/internal/storage"
)

// Package pdfparser is the extractor function: it turns a stored PDF resume into
// stored plain text.

// ErrEmptyPDF is returned for a zero-length document.
var ErrEmptyPDF = errors.New("empty pdf data")

// ExtractText returns the text of every page in order.
// Malformed content streams make the pdf package panic; that is reported as an error.
func ExtractText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyPDF
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", err
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

// Handler serves the extractor function over HTTP.
type Handler struct {
	store    storage.Storage
	parse    func([]byte) (string, error)
	maxBytes int64
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHandler builds the handler. maxBytes <= 0 disables the PDF size check.
func NewHandler(store storage.Storage, maxBytes int64, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{
		store:    store,
		parse:    ExtractText,
		maxBytes: maxBytes,
		timeout:  timeout,
		logger:   logger,
	}
}

// Register mounts the function on app.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/", h.Parse)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// Parse handles {s3_bucket, s3_key} and answers {s3_key} of the stored text.
func (h *Handler) Parse(c *fiber.Ctx) error {
	var req functions.ExtractRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		return fail(c, fiber.StatusBadRequest, "S3 key is missing")
	}
	if req.Bucket != "" && req.Bucket != h.store.Bucket() {
		return fail(c, fiber.StatusBadRequest, "Unknown S3 bucket: "+req.Bucket)
	}

	ctx := c.UserContext()
	data, err := h.fetch(ctx, key)
	if err != nil {
		h.logger.Warn("fetch pdf failed", zap.String("key", key), zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error fetching PDF from S3: "+err.Error())
	}

	text, err := h.parse(data)
	if err != nil {
		h.logger.Warn("parse pdf failed", zap.String("key", key), zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error parsing PDF: "+err.Error())
	}

	parsedKey := storage.ParsedResumeKey(key)
	if err := h.save(ctx, parsedKey, text); err != nil {
		h.logger.Warn("save parsed text failed", zap.String("key", parsedKey), zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error saving parsed text to S3: "+err.Error())
	}

	h.logger.Info("pdf parsed",
		zap.String("key", key),
		zap.String("parsed_key", parsedKey),
		zap.Int("pdf_bytes", len(data)),
		zap.Int("text_bytes", len(text)),
	)
	return c.JSON(functions.ExtractResponse{Key: parsedKey})
}

func (h *Handler) fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return storage.ReadAll(ctx, h.store, key, h.maxBytes)
}

func (h *Handler) save(ctx context.Context, key, text string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	_, err := h.store.Put(ctx, key, strings.NewReader(text), storage.PutObjectOptions{
		Size:        int64(len(text)),
		ContentType: "text/plain",
	})
	return err
}
