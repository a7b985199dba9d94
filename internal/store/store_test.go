package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-grandpa/banana-paper-ui/internal/model"
)

func TestCreateAndGet(t *testing.T) {
	s := New()

	id := s.Create(&model.Job{
		Text:            "A feeds B",
		Caption:         "pipeline",
		TotalIterations: 2,
	})

	_, err := uuid.Parse(id)
	require.NoError(t, err, "job id should be a UUID")

	job, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Equal(t, 2, job.TotalIterations)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestCreateGeneratesDistinctIDs(t *testing.T) {
	s := New()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.Create(&model.Job{})
		assert.False(t, seen[id], "duplicate job id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 100, s.Len())
}

func TestGetNotFound(t *testing.T) {
	s := New()

	_, err := s.Get(uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateNotFound(t *testing.T) {
	s := New()

	_, err := s.Update(uuid.New().String(), func(j *model.Job) {
		j.Status = model.JobStatusRunning
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateReadAfterWrite(t *testing.T) {
	s := New()
	id := s.Create(&model.Job{})

	updated, err := s.Update(id, func(j *model.Job) {
		j.Status = model.JobStatusRunning
		j.Phase = model.PhasePlanning
		j.Progress = "working"
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, updated.Status)

	job, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, model.PhasePlanning, job.Phase)
	assert.Equal(t, "working", job.Progress)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := New()
	id := s.Create(&model.Job{})

	snap, err := s.Get(id)
	require.NoError(t, err)

	// Mutating a snapshot must not leak into the store.
	snap.Status = model.JobStatusFailed
	msg := "tampered"
	snap.Error = &msg
	snap.IterationImages = append(snap.IterationImages, "bogus.png")

	job, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Nil(t, job.Error)
	assert.Empty(t, job.IterationImages)
}

func TestConcurrentUpdatesSameJob(t *testing.T) {
	s := New()
	id := s.Create(&model.Job{})

	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.Update(id, func(j *model.Job) {
					j.Iteration++
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	job, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, job.Iteration, "updates to one job must be serialized")
}

func TestConcurrentJobsDoNotInterfere(t *testing.T) {
	s := New()

	const jobs = 10
	ids := make([]string, jobs)
	for i := range ids {
		ids[i] = s.Create(&model.Job{})
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, err := s.Update(id, func(j *model.Job) {
				j.Status = model.JobStatusRunning
				j.Progress = fmt.Sprintf("job %d", i)
			})
			assert.NoError(t, err)
		}(i, id)
	}
	wg.Wait()

	for i, id := range ids {
		job, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("job %d", i), job.Progress)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := New()
	id := s.Create(&model.Job{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 100; i++ {
			s.Update(id, func(j *model.Job) {
				j.Iteration = i
				j.Progress = fmt.Sprintf("iteration %d", i)
			})
		}
	}()

	// Readers must always observe a consistent pair of fields.
	for {
		select {
		case <-done:
			return
		default:
			job, err := s.Get(id)
			require.NoError(t, err)
			if job.Iteration > 0 {
				assert.Equal(t, fmt.Sprintf("iteration %d", job.Iteration), job.Progress,
					"reader observed a torn update")
			}
		}
	}
}
