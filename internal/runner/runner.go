package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tech-grandpa/banana-paper-ui/internal/model"
	"github.com/tech-grandpa/banana-paper-ui/internal/pipeline"
	"github.com/tech-grandpa/banana-paper-ui/internal/store"
	"github.com/tech-grandpa/banana-paper-ui/internal/websocket"
)

// ErrInvalidIterations is returned by Submit when the requested
// iteration count is outside the accepted 1..MaxIterations range.
var ErrInvalidIterations = errors.New("iterations must be between 1 and 5")

// Runner bridges the synchronous request path and the long-running
// pipeline. Submit returns as soon as the job record exists; the
// pipeline runs in its own goroutine and every run ends in a terminal
// status, whatever the pipeline does.
type Runner struct {
	store    *store.Store
	pipeline pipeline.Pipeline
	hub      *websocket.Hub
	logger   *slog.Logger
}

// New creates a runner. hub may be nil when live progress push is not
// wanted (e.g. in tests).
func New(s *store.Store, p pipeline.Pipeline, hub *websocket.Hub, logger *slog.Logger) *Runner {
	return &Runner{
		store:    s,
		pipeline: p,
		hub:      hub,
		logger:   logger,
	}
}

// Submit validates the request, creates a queued job record and hands
// the pipeline off to a background goroutine. The returned job id is
// immediately queryable.
func (r *Runner) Submit(text, caption string, iterations int) (string, error) {
	if iterations < 1 || iterations > model.MaxIterations {
		return "", ErrInvalidIterations
	}

	jobID := r.store.Create(&model.Job{
		Text:            text,
		Caption:         caption,
		TotalIterations: iterations,
		Progress:        "Job queued...",
	})

	r.logger.Info("job submitted", slog.String("job_id", jobID), slog.Int("iterations", iterations))

	go r.run(jobID, pipeline.Input{
		Text:       text,
		Caption:    caption,
		Iterations: iterations,
	})

	return jobID, nil
}

// run drives one pipeline execution to a terminal state. A panicking
// pipeline is treated the same as a returned error.
func (r *Runner) run(jobID string, in pipeline.Input) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(jobID, fmt.Sprintf("pipeline panic: %v", rec))
		}
	}()

	_, err := r.store.Update(jobID, func(j *model.Job) {
		now := time.Now()
		j.Status = model.JobStatusRunning
		j.StartedAt = &now
		j.Phase = model.PhaseInitialization
		j.Progress = "Initializing pipeline..."
	})
	if err != nil {
		r.logger.Error("failed to mark job running", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}

	r.logger.Info("starting generation", slog.String("job_id", jobID))

	out, err := r.pipeline.Run(context.Background(), in, r.reporter(jobID))
	if err != nil {
		r.fail(jobID, err.Error())
		return
	}

	job, err := r.store.Update(jobID, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		now := time.Now()
		j.Status = model.JobStatusCompleted
		j.CompletedAt = &now
		j.Phase = model.PhaseCompleted
		j.Agent = ""
		j.Progress = "Generation completed!"
		j.OutputDir = out.OutputDir
		j.FinalImage = out.FinalImage
		j.IterationImages = append([]string(nil), out.IterationImages...)
	})
	if err != nil {
		r.logger.Error("failed to complete job", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}

	r.logger.Info("generation completed", slog.String("job_id", jobID), slog.String("output_dir", out.OutputDir))

	if r.hub != nil {
		r.hub.BroadcastComplete(jobID, job)
	}
}

// reporter builds the progress callback bound to one job id. Each call
// is a single atomic store update; reports landing after a terminal
// status are dropped so a lingering pipeline goroutine can never
// overwrite a finished record.
func (r *Runner) reporter(jobID string) pipeline.ProgressFunc {
	return func(phase, agent string, iteration, totalIterations int, message string) {
		job, err := r.store.Update(jobID, func(j *model.Job) {
			if j.Status.Terminal() {
				return
			}
			j.Status = model.JobStatusRunning
			j.Phase = phase
			j.Agent = agent
			if iteration > 0 {
				j.Iteration = iteration
			}
			if totalIterations > 0 {
				j.TotalIterations = totalIterations
			}
			j.Progress = message
		})
		if err != nil {
			r.logger.Warn("progress report for unknown job", slog.String("job_id", jobID))
			return
		}
		if job.Status.Terminal() {
			return
		}

		r.logger.Debug("progress",
			slog.String("job_id", jobID),
			slog.String("phase", phase),
			slog.String("agent", agent),
			slog.Int("iteration", iteration),
		)

		if r.hub != nil {
			r.hub.BroadcastProgress(jobID, job)
		}
	}
}

func (r *Runner) fail(jobID, msg string) {
	_, err := r.store.Update(jobID, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		now := time.Now()
		j.Status = model.JobStatusFailed
		j.CompletedAt = &now
		j.Error = &msg
	})
	if err != nil {
		r.logger.Error("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}

	r.logger.Error("generation failed", slog.String("job_id", jobID), slog.String("error", msg))

	if r.hub != nil {
		r.hub.BroadcastError(jobID, "GENERATION_FAILED", msg)
	}
}
