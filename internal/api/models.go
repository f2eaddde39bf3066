package api

// PromptRequest defines the payload for the prompt submission endpoint.
type PromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// SubmitResponse is returned when a task has been accepted.
type SubmitResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`

	// EstimatedTimeRemaining is the initial estimate in seconds
	EstimatedTimeRemaining int `json:"estimatedTimeRemaining"`
}

// CancelResponse is returned when a resident task was flagged for cancellation.
type CancelResponse struct {
	Success bool `json:"success"`
}
