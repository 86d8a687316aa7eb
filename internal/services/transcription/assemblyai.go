package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/socialchef/scribe/internal/errors"
	"github.com/socialchef/scribe/internal/httpclient"
	"github.com/socialchef/scribe/internal/logger"
	"github.com/socialchef/scribe/internal/metrics"
	"github.com/socialchef/scribe/internal/utils"
)

const (
	DefaultBaseURL = "https://api.assemblyai.com"
	transcriptPath = "/v2/transcript"
)

// AssemblyAIProvider implements TranscriptionProvider against the AssemblyAI
// asynchronous transcript API: submit a job, then poll it until it settles.
type AssemblyAIProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	poll       utils.PollConfig
}

// NewAssemblyAIProvider creates a provider. Each HTTP call is bounded by the
// client timeout; the overall wait is bounded by poll and the caller's context.
func NewAssemblyAIProvider(apiKey, baseURL string, poll utils.PollConfig) *AssemblyAIProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AssemblyAIProvider{
		apiKey:     apiKey,
		httpClient: httpclient.New(30 * time.Second),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		poll:       poll,
	}
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
}

// Transcribe submits audioURL and waits for the resulting text.
func (p *AssemblyAIProvider) Transcribe(ctx context.Context, audioURL string) (string, error) {
	job, err := p.Submit(ctx, audioURL)
	if err != nil {
		return "", err
	}
	return p.Wait(ctx, job.ID)
}

// Submit creates a transcript job for audioURL.
func (p *AssemblyAIProvider) Submit(ctx context.Context, audioURL string) (*Job, error) {
	payload, err := json.Marshal(submitRequest{AudioURL: audioURL})
	if err != nil {
		return nil, apperrors.NewTranscriptionError("failed to encode transcript request", "TRANSCRIPTION_REQUEST_ERROR", err)
	}

	status, body, err := p.do(ctx, http.MethodPost, p.baseURL+transcriptPath, payload, "submit")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apperrors.NewUpstreamError(
			fmt.Sprintf("Failed to submit audio for transcription: %s", string(body)),
			"TRANSCRIPTION_SUBMIT_FAILED", status, nil)
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, apperrors.NewTranscriptionError("failed to parse transcript response", "PARSE_RESPONSE_ERROR", err)
	}
	if job.ID == "" {
		return nil, apperrors.NewTranscriptionError("transcript response did not contain a job id", "TRANSCRIPTION_MISSING_ID", nil)
	}

	logger.FromContext(ctx).Info("Transcription job submitted", "job_id", job.ID, "status", job.Status)
	return &job, nil
}

// Get fetches the current state of job id.
func (p *AssemblyAIProvider) Get(ctx context.Context, id string) (*Job, error) {
	status, body, err := p.do(ctx, http.MethodGet, p.baseURL+transcriptPath+"/"+url.PathEscape(id), nil, "poll")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apperrors.NewUpstreamError(
			fmt.Sprintf("Failed to fetch transcript %s (status %d): %s", id, status, string(body)),
			"TRANSCRIPTION_POLL_FAILED", status, nil)
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, apperrors.NewTranscriptionError("failed to parse transcript response", "PARSE_RESPONSE_ERROR", err)
	}
	return &job, nil
}

// Wait polls job id at a fixed interval until it completes or errors.
func (p *AssemblyAIProvider) Wait(ctx context.Context, id string) (string, error) {
	log := logger.FromContext(ctx)

	text, err := utils.Poll(ctx, p.poll, func(ctx context.Context, attempt int) (string, bool, error) {
		job, err := p.Get(ctx, id)
		if err != nil {
			return "", false, err
		}
		metrics.RecordPoll(ctx, string(job.Status))

		switch job.Status {
		case StatusCompleted:
			log.Info("Transcription completed", "job_id", id, "polls", attempt)
			return job.Text, true, nil
		case StatusError:
			return "", false, apperrors.NewTranscriptionError(
				fmt.Sprintf("Transcription failed: %s", job.Error), "TRANSCRIPTION_JOB_FAILED", nil)
		default:
			log.Debug("Transcription pending", "job_id", id, "status", job.Status, "attempt", attempt)
			return "", false, nil
		}
	})
	if err == nil {
		return text, nil
	}

	if errors.Is(err, utils.ErrPollExhausted) {
		return "", apperrors.NewTranscriptionError(
			fmt.Sprintf("transcript %s did not complete after %d polls", id, p.poll.MaxAttempts),
			"TRANSCRIPTION_TIMEOUT", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "", apperrors.NewTranscriptionError(
			fmt.Sprintf("stopped waiting for transcript %s", id), "TRANSCRIPTION_TIMEOUT", err)
	}
	return "", err
}

func (p *AssemblyAIProvider) do(ctx context.Context, method, endpoint string, payload []byte, operation string) (int, []byte, error) {
	ctx = httpclient.WithProvider(ctx, string(ProviderAssemblyAI))

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, apperrors.NewTranscriptionError("failed to create AssemblyAI request", "TRANSCRIPTION_REQUEST_ERROR", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.NewUpstreamError("failed to call AssemblyAI", "TRANSCRIPTION_API_ERROR", http.StatusBadGateway, err)
	}
	defer resp.Body.Close()

	metrics.RecordAPICall(ctx, string(ProviderAssemblyAI), operation, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperrors.NewTranscriptionError("failed to read AssemblyAI response", "READ_RESPONSE_ERROR", err)
	}
	return resp.StatusCode, body, nil
}
