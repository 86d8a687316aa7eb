package transcription

import (
	"context"
)

type ProviderType string

const (
	ProviderAssemblyAI ProviderType = "assemblyai"
)

// JobStatus is the lifecycle state of a remote transcript job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Job is the last observed state of a transcript job.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
	Text   string    `json:"text"`
	Error  string    `json:"error,omitempty"`
}

// TranscriptionProvider turns a readable audio URL into text.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}
