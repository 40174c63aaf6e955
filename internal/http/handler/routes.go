package handler

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"

	"resumeboost/docs"
	"resumeboost/internal/model"
	"resumeboost/internal/service"
)

const healthTimeout = 2 * time.Second

// Checker is a named dependency probed by /health.
type Checker struct {
	Name string
	Ping func(ctx context.Context) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, svc service.AnalysisService, maxResumeBytes int64, checkers ...Checker) {
	app.Get("/swagger/*", SwaggerUI())

	app.Get("/health", HealthCheck(checkers...))
	app.Get("/healthz", LivenessProbe())

	app.Get("/analyses", ListAnalyses(svc))
	app.Post("/analyses", CreateAnalysis(svc, maxResumeBytes))
	app.Get("/analyses/:id", GetAnalysis(svc))
}

// SwaggerUI serves the API docs with the host and scheme the client used.
func SwaggerUI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	}
}

// HealthCheck godoc
// @Summary      Dependency health
// @Description  Pings object storage and the run history store.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  errorPayload
// @Router       /health [get]
func HealthCheck(checkers ...Checker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		for _, chk := range checkers {
			if err := chk.Ping(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable: "+chk.Name)
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 as long as the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListAnalyses godoc
// @Summary      List analysis runs
// @Tags         analyses
// @Produce      json
// @Param        limit   query     int  false  "page size"  default(10)
// @Param        offset  query     int  false  "page offset"  default(0)
// @Success      200     {object}  service.RunListResult
// @Failure      400     {object}  errorPayload
// @Router       /analyses [get]
func ListAnalyses(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// CreateAnalysis godoc
// @Summary      Analyze a resume against a job posting
// @Description  Uploads the resume, extracts its text and scrapes the job page in parallel, then runs the analysis.
// @Tags         analyses
// @Accept       multipart/form-data
// @Produce      json
// @Param        resume           formData  file    true  "PDF resume"
// @Param        job_url          formData  string  true  "job posting URL (http or https)"
// @Param        analysis_option  formData  string  true  "Quick Scan, Detailed Analysis or ATS Optimization"
// @Success      200  {object}  model.Run
// @Failure      400  {object}  errorPayload
// @Failure      502  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /analyses [post]
func CreateAnalysis(svc service.AnalysisService, maxResumeBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("resume")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "RESUME_REQUIRED", "Please upload a PDF file.")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		// One byte past the limit is enough for the size check downstream.
		var r io.Reader = f
		if maxResumeBytes > 0 {
			r = io.LimitReader(f, maxResumeBytes+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		rawMode := c.FormValue("analysis_option")
		mode, err := model.ParseAnalysisMode(rawMode)
		if err != nil {
			mode = model.AnalysisMode(rawMode)
		}

		run, err := svc.Analyze(c.UserContext(), service.AnalyzeInput{
			Resume:   data,
			Filename: fh.Filename,
			JobURL:   c.FormValue("job_url"),
			Mode:     mode,
		})
		if err != nil {
			runID := ""
			if run != nil {
				runID = run.ID
			}
			return writeRunError(c, runID, err)
		}
		return c.Status(fiber.StatusOK).JSON(run)
	}
}

// GetAnalysis godoc
// @Summary      Get an analysis run
// @Tags         analyses
// @Produce      json
// @Param        id   path      string  true  "run id"
// @Success      200  {object}  model.Run
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /analyses/{id} [get]
func GetAnalysis(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		run, err := svc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "analysis run not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(run)
	}
}
