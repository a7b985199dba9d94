package service

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tech-grandpa/banana-paper-ui/internal/model"
	"github.com/tech-grandpa/banana-paper-ui/internal/store"
)

// ErrNotCompleted signals that a job exists but has not reached a
// terminal state yet; callers are expected to keep polling.
var ErrNotCompleted = errors.New("job not completed")

// QueryService is the read-only projection of job records into the
// public status and result views.
type QueryService struct {
	store *store.Store
}

func NewQueryService(s *store.Store) *QueryService {
	return &QueryService{store: s}
}

// Status returns the status view for a job. Available at any time
// after submission.
func (s *QueryService) Status(jobID string) (*model.StatusResponse, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	return &model.StatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Phase:           job.Phase,
		Agent:           job.Agent,
		Iteration:       job.Iteration,
		TotalIterations: job.TotalIterations,
		Progress:        job.Progress,
		Error:           job.Error,
	}, nil
}

// Result returns the result view for a terminal job. Image paths are
// projected to servable URLs; a failed job reports its error here
// rather than a "not ready" signal.
func (s *QueryService) Result(jobID string) (*model.ResultResponse, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	if !job.Status.Terminal() {
		return nil, ErrNotCompleted
	}

	resp := &model.ResultResponse{
		JobID:           job.ID,
		Status:          job.Status,
		IterationImages: []string{},
		Error:           job.Error,
	}

	if job.Status == model.JobStatusCompleted {
		resp.FinalImage = imageURL(job.ID, job.FinalImage)
		for _, p := range job.IterationImages {
			resp.IterationImages = append(resp.IterationImages, imageURL(job.ID, p))
		}
	}

	return resp, nil
}

func imageURL(jobID, imagePath string) string {
	return fmt.Sprintf("/api/result/%s/image/%s", jobID, filepath.Base(imagePath))
}
