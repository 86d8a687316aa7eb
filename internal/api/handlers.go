package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/socialchef/scribe/internal/ingest"
	"github.com/socialchef/scribe/internal/invocation"
	"github.com/socialchef/scribe/internal/logger"
)

// Server replays Lambda event payloads posted over HTTP against the
// handlers, for local runs against LocalStack or MinIO.
type Server struct {
	ingest   invocation.Handler[events.S3Event, ingest.Response]
	notifier invocation.Handler[cfn.Event, struct{}]
}

func NewServer(ingestHandler invocation.Handler[events.S3Event, ingest.Response], notifyHandler invocation.Handler[cfn.Event, struct{}]) *Server {
	return &Server{
		ingest:   ingestHandler,
		notifier: notifyHandler,
	}
}

// withInvocation attaches a Lambda context with a fresh request id so logs
// and spans look like a real invocation.
func withInvocation(ctx context.Context) (context.Context, string) {
	requestID := uuid.New().String()
	return lambdacontext.NewContext(ctx, &lambdacontext.LambdaContext{AwsRequestID: requestID}), requestID
}

func (s *Server) HandleS3Event(w http.ResponseWriter, r *http.Request) {
	var event events.S3Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, requestID := withInvocation(r.Context())
	logger.FromContext(ctx).Info("Dispatching S3 event", "records", len(event.Records))

	resp, err := s.ingest(ctx, event)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resp.Body))
}

type CFNEventResponse struct {
	RequestID   string `json:"request_id"`
	RequestType string `json:"request_type"`
	Status      string `json:"status"`
}

func (s *Server) HandleCFNEvent(w http.ResponseWriter, r *http.Request) {
	var event cfn.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if event.RequestType == "" {
		http.Error(w, "RequestType is required", http.StatusBadRequest)
		return
	}
	if event.ResponseURL == "" {
		http.Error(w, "ResponseURL is required", http.StatusBadRequest)
		return
	}

	ctx, requestID := withInvocation(r.Context())
	logger.FromContext(ctx).Info("Dispatching CloudFormation event", "request_type", event.RequestType)

	if _, err := s.notifier(ctx, event); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CFNEventResponse{
		RequestID:   requestID,
		RequestType: string(event.RequestType),
		Status:      "handled",
	})
}
