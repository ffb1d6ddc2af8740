package ai

import (
	"context"
	"errors"
)

// BandPrompt describes one performance level the oracle may choose.
type BandPrompt struct {
	Level       string
	Description string
	Min         int
	Max         int
}

// CriteriaPrompt carries everything needed to score a submission against one rubric criteria.
type CriteriaPrompt struct {
	RubricTitle         string
	CriteriaName        string
	CriteriaDescription string
	Points              int
	Bands               []BandPrompt
	SubmissionText      string
}

// Completion is the raw oracle reply. Parsing and validation belong to the caller.
type Completion struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// ErrExternalService marks every oracle failure: transport errors, timeouts and replies
// that cannot be used.
var ErrExternalService = errors.New("external service failure")

// Oracle is an external text-scoring service. Implementations are untrusted and may
// time out or reply with malformed content.
type Oracle interface {
	Evaluate(ctx context.Context, prompt CriteriaPrompt) (Completion, error)
}
