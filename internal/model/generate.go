package model

// GenerateRequest represents the request body for starting a generation
// job. Iterations is optional; the server default applies when omitted.
type GenerateRequest struct {
	Text       string `json:"text" validate:"required"`
	Caption    string `json:"caption" validate:"required"`
	Iterations *int   `json:"iterations" validate:"omitempty,min=1,max=5"`
}

// GenerateResponse represents the response when a job is accepted
type GenerateResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// StatusResponse represents the status view of a job
type StatusResponse struct {
	JobID           string    `json:"job_id"`
	Status          JobStatus `json:"status"`
	Phase           string    `json:"phase,omitempty"`
	Agent           string    `json:"agent,omitempty"`
	Iteration       int       `json:"iteration,omitempty"`
	TotalIterations int       `json:"total_iterations,omitempty"`
	Progress        string    `json:"progress,omitempty"`
	Error           *string   `json:"error,omitempty"`
}

// ResultResponse represents the result view of a terminal job. Image
// fields hold servable URLs, not filesystem paths.
type ResultResponse struct {
	JobID           string    `json:"job_id"`
	Status          JobStatus `json:"status"`
	FinalImage      string    `json:"final_image,omitempty"`
	IterationImages []string  `json:"iteration_images"`
	Error           *string   `json:"error,omitempty"`
}
