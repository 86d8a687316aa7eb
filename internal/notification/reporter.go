package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	apperrors "github.com/socialchef/scribe/internal/errors"
	"github.com/socialchef/scribe/internal/httpclient"
	"github.com/socialchef/scribe/internal/logger"
	"github.com/socialchef/scribe/internal/metrics"
)

const callbackTimeout = 30 * time.Second

// Response is the document PUT to the pre-signed ResponseURL.
type Response struct {
	Status             cfn.StatusType         `json:"Status"`
	Reason             string                 `json:"Reason"`
	PhysicalResourceID string                 `json:"PhysicalResourceId"`
	StackID            string                 `json:"StackId"`
	RequestID          string                 `json:"RequestId"`
	LogicalResourceID  string                 `json:"LogicalResourceId"`
	NoEcho             bool                   `json:"NoEcho"`
	Data               map[string]interface{} `json:"Data"`
}

// Reporter sends custom resource results back to CloudFormation.
type Reporter struct {
	httpClient    *http.Client
	logStreamName func() string
}

func NewReporter(client *http.Client) *Reporter {
	if client == nil {
		client = httpclient.New(callbackTimeout)
	} else {
		client = httpclient.WrapClient(client)
	}
	return &Reporter{
		httpClient:    client,
		logStreamName: func() string { return lambdacontext.LogStreamName },
	}
}

// NewResponse builds the callback document for event. An empty reason is
// replaced by a pointer to the function's log stream.
func (r *Reporter) NewResponse(event cfn.Event, status cfn.StatusType, reason string) Response {
	stream := r.logStreamName()
	if reason == "" {
		reason = "See the details in CloudWatch Log Stream: " + stream
	}
	return Response{
		Status:             status,
		Reason:             reason,
		PhysicalResourceID: physicalResourceID(event, stream),
		StackID:            event.StackID,
		RequestID:          event.RequestID,
		LogicalResourceID:  event.LogicalResourceID,
		NoEcho:             false,
		Data:               map[string]interface{}{},
	}
}

// physicalResourceID keeps the id CloudFormation already knows so Update and
// Delete never look like a replacement.
func physicalResourceID(event cfn.Event, stream string) string {
	switch {
	case event.PhysicalResourceID != "":
		return event.PhysicalResourceID
	case stream != "":
		return stream
	default:
		return uuid.New().String()
	}
}

// Send PUTs the response to event.ResponseURL. The request is detached from
// ctx cancellation and bounded by callbackTimeout, so a handler that ran out
// of time still reports.
func (r *Reporter) Send(ctx context.Context, event cfn.Event, status cfn.StatusType, reason string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callbackTimeout)
	defer cancel()

	log := logger.FromContext(ctx)
	resp := r.NewResponse(event, status, reason)

	body, err := json.Marshal(resp)
	if err != nil {
		return r.fail(ctx, apperrors.NewCallbackError("Failed to encode response", "CALLBACK_ENCODE_FAILED", err))
	}
	log.Debug("Response body", "body", string(body))

	ctx = httpclient.WithProvider(ctx, httpclient.ProviderCloudFormation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, event.ResponseURL, bytes.NewReader(body))
	if err != nil {
		return r.fail(ctx, apperrors.NewCallbackError("Invalid response URL", "CALLBACK_INVALID_URL", err))
	}
	// The pre-signed URL is signed without a content type.
	req.Header.Set("Content-Type", "")
	req.ContentLength = int64(len(body))

	res, err := r.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(ctx, httpclient.ProviderCloudFormation, "callback", 0)
		return r.fail(ctx, apperrors.NewCallbackError("Failed to send response", "CALLBACK_SEND_FAILED", err))
	}
	defer res.Body.Close()
	metrics.RecordAPICall(ctx, httpclient.ProviderCloudFormation, "callback", res.StatusCode)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return r.fail(ctx, apperrors.NewCallbackError(
			fmt.Sprintf("Response rejected with status %d: %s", res.StatusCode, detail),
			"CALLBACK_REJECTED", nil))
	}

	log.Info("Response sent", "status", resp.Status, "http_status", res.StatusCode)
	return nil
}

func (r *Reporter) fail(ctx context.Context, err error) error {
	metrics.RecordCallbackFailure(ctx)
	return err
}
