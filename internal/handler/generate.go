package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tech-grandpa/banana-paper-ui/internal/artifact"
	"github.com/tech-grandpa/banana-paper-ui/internal/model"
	"github.com/tech-grandpa/banana-paper-ui/internal/runner"
	"github.com/tech-grandpa/banana-paper-ui/internal/service"
	"github.com/tech-grandpa/banana-paper-ui/internal/store"
	"github.com/tech-grandpa/banana-paper-ui/pkg/response"
)

type GenerateHandler struct {
	runner            *runner.Runner
	query             *service.QueryService
	resolver          *artifact.Resolver
	validator         *validator.Validate
	defaultIterations int
}

func NewGenerateHandler(r *runner.Runner, q *service.QueryService, res *artifact.Resolver, v *validator.Validate, defaultIterations int) *GenerateHandler {
	return &GenerateHandler{
		runner:            r,
		query:             q,
		resolver:          res,
		validator:         v,
		defaultIterations: defaultIterations,
	}
}

// Generate handles POST /api/generate
// @Summary      Start diagram generation
// @Description  Start an asynchronous diagram-generation job
// @Tags         Generate
// @Accept       json
// @Produce      json
// @Param        request body model.GenerateRequest true "Generation request"
// @Success      202 {object} model.GenerateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Router       /api/generate [post]
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	iterations := h.defaultIterations
	if req.Iterations != nil {
		iterations = *req.Iterations
	}

	jobID, err := h.runner.Submit(req.Text, req.Caption, iterations)
	if err != nil {
		if errors.Is(err, runner.ErrInvalidIterations) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.GenerateResponse{
		JobID:  jobID,
		Status: model.JobStatusQueued,
	})
}

// Status handles GET /api/status/:jobId
// @Summary      Get job status
// @Description  Get the current status, phase and progress of a generation job
// @Tags         Generate
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.StatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/status/{jobId} [get]
func (h *GenerateHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	result, err := h.query.Status(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/result/:jobId
// @Summary      Get job result
// @Description  Get the final and per-iteration image references of a finished job
// @Tags         Generate
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/result/{jobId} [get]
func (h *GenerateHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	result, err := h.query.Result(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrNotCompleted) {
			return response.JobPending(c, "Job not completed yet")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Image handles GET /api/result/:jobId/image/:filename
// @Summary      Get a job artifact
// @Description  Serve one generated image from the job's output directory
// @Tags         Generate
// @Produce      png
// @Param        jobId path string true "Job ID"
// @Param        filename path string true "Image filename"
// @Success      200 {file} binary
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/result/{jobId}/image/{filename} [get]
func (h *GenerateHandler) Image(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	filename := c.Params("filename")

	path, err := h.resolver.Resolve(jobID, filename)
	if err != nil {
		if errors.Is(err, artifact.ErrForbidden) {
			return response.Forbidden(c, "Requested file is not an artifact of this job")
		}
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Image not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return c.SendFile(path)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		details := make(map[string]string)
		for _, e := range validationErrors {
			details[e.Field()] = e.Tag()
		}
		return details
	}
	return nil
}
