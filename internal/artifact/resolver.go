package artifact

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/tech-grandpa/banana-paper-ui/internal/store"
)

// ErrForbidden is returned for traversal-shaped filenames that try to
// reach outside a job's output directory.
var ErrForbidden = errors.New("artifact access forbidden")

// Resolver maps a job id and a requested filename to a concrete file
// inside that job's output directory, and nowhere else.
type Resolver struct {
	store *store.Store
}

func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the on-disk path for one of a job's recorded images.
// Traversal-shaped filenames yield ErrForbidden; unknown jobs, names
// outside the job's recorded artifact set and missing files yield
// store.ErrNotFound.
func (r *Resolver) Resolve(jobID, filename string) (string, error) {
	job, err := r.store.Get(jobID)
	if err != nil {
		return "", err
	}

	if filename == "" || filename == ".." || filename != filepath.Base(filename) {
		return "", ErrForbidden
	}

	if job.OutputDir == "" {
		return "", store.ErrNotFound
	}

	if !r.recorded(job.FinalImage, job.IterationImages, filename) {
		return "", store.ErrNotFound
	}

	path := filepath.Join(job.OutputDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", store.ErrNotFound
	}

	return path, nil
}

func (r *Resolver) recorded(finalImage string, iterationImages []string, filename string) bool {
	if finalImage != "" && filepath.Base(finalImage) == filename {
		return true
	}
	for _, p := range iterationImages {
		if filepath.Base(p) == filename {
			return true
		}
	}
	return false
}
