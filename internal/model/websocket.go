package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress update for a running job
type WSProgressMessage struct {
	Type            string    `json:"type"`
	JobID           string    `json:"jobId"`
	Status          JobStatus `json:"status"`
	Phase           string    `json:"phase,omitempty"`
	Agent           string    `json:"agent,omitempty"`
	Iteration       int       `json:"iteration,omitempty"`
	TotalIterations int       `json:"totalIterations,omitempty"`
	Progress        string    `json:"progress,omitempty"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage represents a failed job
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
