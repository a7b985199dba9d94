package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further status transitions may occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Pipeline phases reported during a run
const (
	PhaseInitialization = "initialization"
	PhasePlanning       = "planning"
	PhaseRefinement     = "refinement"
	PhaseCompleted      = "completed"
)

// Pipeline agents reported during a run
const (
	AgentRetriever  = "retriever"
	AgentPlanner    = "planner"
	AgentStylist    = "stylist"
	AgentVisualizer = "visualizer"
	AgentCritic     = "critic"
)

// MaxIterations bounds the refinement iteration count accepted on submit.
const MaxIterations = 5

// Job tracks one diagram-generation request through its lifecycle.
// All mutable fields are guarded by the store; callers only ever see
// snapshots.
type Job struct {
	ID              string     `json:"id"`
	Status          JobStatus  `json:"status"`
	Text            string     `json:"-"`
	Caption         string     `json:"-"`
	Phase           string     `json:"phase,omitempty"`
	Agent           string     `json:"agent,omitempty"`
	Iteration       int        `json:"iteration,omitempty"`
	TotalIterations int        `json:"totalIterations"`
	Progress        string     `json:"progress,omitempty"`
	Error           *string    `json:"error,omitempty"`
	OutputDir       string     `json:"-"`
	FinalImage      string     `json:"-"`
	IterationImages []string   `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so store readers never share mutable state
// with writers.
func (j *Job) Clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.IterationImages != nil {
		c.IterationImages = append([]string(nil), j.IterationImages...)
	}
	return &c
}
