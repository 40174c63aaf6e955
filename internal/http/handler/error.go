package handler

import (
	"github.com/gofiber/fiber/v2"

	"resumeboost/internal/http/middleware"
	"resumeboost/internal/orchestrator"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	RunID     string        `json:"run_id,omitempty"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	})
}

// writeRunError reports a failed analysis run. The run's message is shown verbatim.
func writeRunError(c *fiber.Ctx, runID string, err error) error {
	kind := orchestrator.KindOf(err)
	message := err.Error()
	if kind == orchestrator.KindUnexpected && message == "" {
		message = "internal server error"
	}
	return c.Status(statusForKind(kind)).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		RunID:     runID,
		Error: errorEnvelope{
			Code:    kind.Code(),
			Message: message,
		},
	})
}

func statusForKind(kind orchestrator.Kind) int {
	switch kind {
	case orchestrator.KindValidation:
		return fiber.StatusBadRequest
	case orchestrator.KindUpload, orchestrator.KindExtraction, orchestrator.KindScraping, orchestrator.KindAnalysis:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
