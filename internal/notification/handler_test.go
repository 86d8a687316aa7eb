package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/socialchef/scribe/internal/config"
	apperrors "github.com/socialchef/scribe/internal/errors"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) PutNotificationConfiguration(ctx context.Context, bucket string, nc *s3types.NotificationConfiguration) error {
	args := m.Called(ctx, bucket, nc)
	return args.Error(0)
}

type callback struct {
	method      string
	contentType string
	length      int64
	body        Response
}

// callbackServer records every PUT to the response URL.
func callbackServer(t *testing.T, status int) (*httptest.Server, <-chan callback) {
	t.Helper()
	calls := make(chan callback, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body Response
		assert.NoError(t, json.Unmarshal(data, &body))
		calls <- callback{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			length:      r.ContentLength,
			body:        body,
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.NotificationApplyDelay = 0
	return cfg
}

func testReporter(stream string) *Reporter {
	r := NewReporter(&http.Client{Timeout: 5 * time.Second})
	r.logStreamName = func() string { return stream }
	return r
}

func properties(t *testing.T, doc string) map[string]interface{} {
	t.Helper()
	var props map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &props))
	return props
}

func testEvent(requestType cfn.RequestType, responseURL string, props map[string]interface{}) cfn.Event {
	return cfn.Event{
		RequestType:        requestType,
		RequestID:          "req-1",
		ResponseURL:        responseURL,
		ResourceType:       "Custom::S3BucketNotification",
		LogicalResourceID:  "TranscribeNotification",
		StackID:            "arn:aws:cloudformation:us-east-1:123456789012:stack/scribe/abc",
		ResourceProperties: props,
	}
}

func receive(t *testing.T, calls <-chan callback) callback {
	t.Helper()
	select {
	case c := <-calls:
		return c
	default:
		t.Fatal("Expected a callback to the response URL")
		return callback{}
	}
}

const lambdaProps = `{
	"ServiceToken": "arn:aws:lambda:us-east-1:123456789012:function:notifier",
	"BucketName": "audio-uploads",
	"NotificationConfiguration": {
		"LambdaFunctionConfigurations": [{
			"LambdaFunctionArn": "arn:aws:lambda:us-east-1:123456789012:function:transcriber",
			"Events": "s3:ObjectCreated:*",
			"Filter": {"Key": {"FilterRules": [{"Name": "suffix", "Value": ".mp3"}]}}
		}]
	}
}`

func TestHandle_CreateAppliesConfiguration(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)

	store.On("PutNotificationConfiguration", mock.Anything, "audio-uploads", mock.MatchedBy(func(nc *s3types.NotificationConfiguration) bool {
		if len(nc.LambdaFunctionConfigurations) != 1 {
			return false
		}
		lc := nc.LambdaFunctionConfigurations[0]
		return aws.ToString(lc.LambdaFunctionArn) == "arn:aws:lambda:us-east-1:123456789012:function:transcriber" &&
			len(lc.Events) == 1 && lc.Events[0] == s3types.Event("s3:ObjectCreated:*") &&
			lc.Filter != nil && aws.ToString(lc.Filter.Key.FilterRules[0].Value) == ".mp3"
	})).Return(nil)

	h := NewHandler(testConfig(), store, testReporter("2026/10/18/[$LATEST]abc"))
	err := h.Handle(context.Background(), testEvent(cfn.RequestCreate, server.URL, properties(t, lambdaProps)))
	require.NoError(t, err)

	c := receive(t, calls)
	assert.Equal(t, http.MethodPut, c.method)
	assert.Empty(t, c.contentType)
	assert.Greater(t, c.length, int64(0))
	assert.Equal(t, cfn.StatusSuccess, c.body.Status)
	assert.Equal(t, "See the details in CloudWatch Log Stream: 2026/10/18/[$LATEST]abc", c.body.Reason)
	assert.Equal(t, "2026/10/18/[$LATEST]abc", c.body.PhysicalResourceID)
	assert.Equal(t, "req-1", c.body.RequestID)
	assert.Equal(t, "TranscribeNotification", c.body.LogicalResourceID)
	assert.False(t, c.body.NoEcho)
	assert.NotNil(t, c.body.Data)
	store.AssertExpectations(t)
}

func TestHandle_DeleteClearsConfiguration(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)
	store.On("PutNotificationConfiguration", mock.Anything, "audio-uploads", &s3types.NotificationConfiguration{}).Return(nil)

	event := testEvent(cfn.RequestDelete, server.URL, properties(t, lambdaProps))
	event.PhysicalResourceID = "existing-id"

	h := NewHandler(testConfig(), store, testReporter("stream"))
	require.NoError(t, h.Handle(context.Background(), event))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusSuccess, c.body.Status)
	assert.Equal(t, "existing-id", c.body.PhysicalResourceID)
	store.AssertExpectations(t)
}

func TestHandle_ApplyFailureReportsFailed(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)
	store.On("PutNotificationConfiguration", mock.Anything, "audio-uploads", mock.Anything).
		Return(apperrors.NewStorageError("Failed to put bucket notification configuration", "STORAGE_NOTIFICATION_FAILED",
			errors.New("Unable to validate the following destination configurations")))

	h := NewHandler(testConfig(), store, testReporter("stream"))
	require.NoError(t, h.Handle(context.Background(), testEvent(cfn.RequestUpdate, server.URL, properties(t, lambdaProps))))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusFailed, c.body.Status)
	assert.Contains(t, c.body.Reason, "Unable to validate the following destination configurations")
}

func TestHandle_MissingBucketName(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)

	h := NewHandler(testConfig(), store, testReporter("stream"))
	require.NoError(t, h.Handle(context.Background(), testEvent(cfn.RequestCreate, server.URL, properties(t, `{"NotificationConfiguration": {}}`))))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusFailed, c.body.Status)
	assert.Equal(t, "BucketName is required", c.body.Reason)
	store.AssertNotCalled(t, "PutNotificationConfiguration", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_UnsupportedRequestType(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)

	h := NewHandler(testConfig(), store, testReporter("stream"))
	require.NoError(t, h.Handle(context.Background(), testEvent(cfn.RequestType("Rollback"), server.URL, properties(t, lambdaProps))))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusFailed, c.body.Status)
	assert.Contains(t, c.body.Reason, "Unsupported request type: Rollback")
}

func TestHandle_CallbackRejectedStillReturnsNil(t *testing.T) {
	server, calls := callbackServer(t, http.StatusForbidden)
	store := new(MockStore)
	store.On("PutNotificationConfiguration", mock.Anything, "audio-uploads", mock.Anything).Return(nil)

	h := NewHandler(testConfig(), store, testReporter("stream"))
	assert.NoError(t, h.Handle(context.Background(), testEvent(cfn.RequestCreate, server.URL, properties(t, lambdaProps))))
	receive(t, calls)
}

func TestHandle_DeleteIgnoresMalformedConfiguration(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)
	store.On("PutNotificationConfiguration", mock.Anything, "audio-uploads", &s3types.NotificationConfiguration{}).Return(nil)

	props := properties(t, `{
		"BucketName": "audio-uploads",
		"NotificationConfiguration": {
			"LambdaFunctionConfigurations": [{"LambdaFunctionArn": "arn:fn:a", "Events": 42}]
		}
	}`)
	_, err := ParseProperties(props)
	require.Error(t, err)

	h := NewHandler(testConfig(), store, testReporter("stream"))
	require.NoError(t, h.Handle(context.Background(), testEvent(cfn.RequestDelete, server.URL, props)))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusSuccess, c.body.Status)
	store.AssertNumberOfCalls(t, "PutNotificationConfiguration", 1)
}

func TestHandle_StopsBeforeDeadlineAndStillReports(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)

	cfg := testConfig()
	cfg.Pipeline.NotificationApplyDelay = time.Hour
	cfg.Pipeline.DeadlineMargin = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	h := NewHandler(cfg, store, testReporter("stream"))
	require.NoError(t, h.Handle(ctx, testEvent(cfn.RequestCreate, server.URL, properties(t, lambdaProps))))

	assert.NoError(t, ctx.Err(), "handler must finish before the invocation deadline")
	c := receive(t, calls)
	assert.Equal(t, cfn.StatusFailed, c.body.Status)
	assert.Contains(t, c.body.Reason, "Interrupted before applying notification configuration")
	store.AssertNotCalled(t, "PutNotificationConfiguration", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_CancelledContextStillReports(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)

	cfg := testConfig()
	cfg.Pipeline.NotificationApplyDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHandler(cfg, store, testReporter("stream"))
	require.NoError(t, h.Handle(ctx, testEvent(cfn.RequestUpdate, server.URL, properties(t, lambdaProps))))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusFailed, c.body.Status)
}

func TestHandle_PanicReportsFailed(t *testing.T) {
	server, calls := callbackServer(t, http.StatusOK)
	store := new(MockStore)
	store.On("PutNotificationConfiguration", mock.Anything, "audio-uploads", mock.Anything).
		Run(func(mock.Arguments) { panic("nil pointer dereference") }).
		Return(nil)

	h := NewHandler(testConfig(), store, testReporter("stream"))
	require.NoError(t, h.Handle(context.Background(), testEvent(cfn.RequestDelete, server.URL, properties(t, lambdaProps))))

	c := receive(t, calls)
	assert.Equal(t, cfn.StatusFailed, c.body.Status)
	assert.Contains(t, c.body.Reason, "panic while handling Delete request: nil pointer dereference")
}

func TestReporter_SendRejected(t *testing.T) {
	server, _ := callbackServer(t, http.StatusBadRequest)

	err := testReporter("stream").Send(context.Background(), testEvent(cfn.RequestCreate, server.URL, nil), cfn.StatusSuccess, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeCallback, apperrors.TypeOf(err))
	assert.Equal(t, "CALLBACK_REJECTED", apperrors.CodeOf(err))
}

func TestPhysicalResourceID(t *testing.T) {
	assert.Equal(t, "known", physicalResourceID(cfn.Event{PhysicalResourceID: "known"}, "stream"))
	assert.Equal(t, "stream", physicalResourceID(cfn.Event{}, "stream"))
	assert.Len(t, physicalResourceID(cfn.Event{}, ""), 36)
}
