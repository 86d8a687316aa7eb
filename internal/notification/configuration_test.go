package notification

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/socialchef/scribe/internal/errors"
)

func TestEventList_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want EventList
	}{
		{"scalar", `"s3:ObjectCreated:*"`, EventList{"s3:ObjectCreated:*"}},
		{"list", `["s3:ObjectCreated:Put","s3:ObjectCreated:Post"]`, EventList{"s3:ObjectCreated:Put", "s3:ObjectCreated:Post"}},
		{"null", `null`, EventList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got EventList
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad EventList
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestParseProperties_NormalizesEvents(t *testing.T) {
	props := properties(t, `{
		"BucketName": "audio-uploads",
		"NotificationConfiguration": {
			"LambdaFunctionConfigurations": [
				{"LambdaFunctionArn": "arn:fn:a", "Events": "s3:ObjectCreated:*"},
				{"LambdaFunctionArn": "arn:fn:b"}
			],
			"QueueConfigurations": [{"Id": "q", "QueueArn": "arn:sqs:q", "Events": ["s3:ObjectRemoved:*"]}],
			"TopicConfigurations": [{"TopicArn": "arn:sns:t", "Events": "s3:ObjectCreated:Put"}]
		}
	}`)

	p, err := ParseProperties(props)
	require.NoError(t, err)
	assert.Equal(t, "audio-uploads", p.BucketName)

	nc := p.NotificationConfiguration
	assert.Equal(t, EventList{"s3:ObjectCreated:*"}, nc.LambdaFunctionConfigurations[0].Events)
	assert.Equal(t, EventList{}, nc.LambdaFunctionConfigurations[1].Events)
	assert.Equal(t, EventList{"s3:ObjectRemoved:*"}, nc.QueueConfigurations[0].Events)
	assert.Equal(t, EventList{"s3:ObjectCreated:Put"}, nc.TopicConfigurations[0].Events)

	out := nc.ToS3()
	require.Len(t, out.LambdaFunctionConfigurations, 2)
	assert.Equal(t, []s3types.Event{"s3:ObjectCreated:*"}, out.LambdaFunctionConfigurations[0].Events)
	assert.Empty(t, out.LambdaFunctionConfigurations[1].Events)
	assert.Nil(t, out.LambdaFunctionConfigurations[0].Id)
	assert.Nil(t, out.LambdaFunctionConfigurations[0].Filter)
	assert.Equal(t, "q", aws.ToString(out.QueueConfigurations[0].Id))
	assert.Equal(t, "arn:sns:t", aws.ToString(out.TopicConfigurations[0].TopicArn))
	assert.Nil(t, out.EventBridgeConfiguration)
}

func TestParseProperties_StringDocument(t *testing.T) {
	p, err := ParseProperties(map[string]interface{}{
		"BucketName":                "audio-uploads",
		"NotificationConfiguration": `{"EventBridgeConfiguration": {}}`,
	})
	require.NoError(t, err)
	assert.NotNil(t, p.NotificationConfiguration.ToS3().EventBridgeConfiguration)
}

func TestParseProperties_Errors(t *testing.T) {
	_, err := ParseProperties(map[string]interface{}{})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	_, err = ParseProperties(map[string]interface{}{
		"BucketName":                "audio-uploads",
		"NotificationConfiguration": map[string]interface{}{"LambdaFunctionConfigurations": "nope"},
	})
	assert.Equal(t, "INVALID_RESOURCE_PROPERTIES", apperrors.CodeOf(err))
}

func TestParseProperties_MissingConfiguration(t *testing.T) {
	p, err := ParseProperties(map[string]interface{}{"BucketName": "audio-uploads"})
	require.NoError(t, err)
	assert.Equal(t, &s3types.NotificationConfiguration{}, p.NotificationConfiguration.ToS3())
}

func TestParseBucketName(t *testing.T) {
	bucket, err := ParseBucketName(map[string]interface{}{
		"BucketName":                "audio-uploads",
		"NotificationConfiguration": "{not json",
	})
	require.NoError(t, err)
	assert.Equal(t, "audio-uploads", bucket)

	_, err = ParseBucketName(map[string]interface{}{"BucketName": 7})
	assert.Equal(t, "INVALID_RESOURCE_PROPERTIES", apperrors.CodeOf(err))

	_, err = ParseBucketName(nil)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}
