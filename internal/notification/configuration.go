package notification

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "github.com/socialchef/scribe/internal/errors"
)

// EventList is a list of S3 event names. A single string decodes to a
// one-element list and null to an empty one.
type EventList []string

func (l *EventList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = EventList{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var events []string
		if err := json.Unmarshal(data, &events); err != nil {
			return err
		}
		*l = events
		return nil
	default:
		var event string
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("Events must be a string or a list of strings: %w", err)
		}
		*l = EventList{event}
		return nil
	}
}

type FilterRule struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type Filter struct {
	Key *struct {
		FilterRules []FilterRule `json:"FilterRules"`
	} `json:"Key,omitempty"`
}

type LambdaFunctionConfiguration struct {
	ID                string    `json:"Id,omitempty"`
	LambdaFunctionArn string    `json:"LambdaFunctionArn"`
	Events            EventList `json:"Events"`
	Filter            *Filter   `json:"Filter,omitempty"`
}

type QueueConfiguration struct {
	ID       string    `json:"Id,omitempty"`
	QueueArn string    `json:"QueueArn"`
	Events   EventList `json:"Events"`
	Filter   *Filter   `json:"Filter,omitempty"`
}

type TopicConfiguration struct {
	ID       string    `json:"Id,omitempty"`
	TopicArn string    `json:"TopicArn"`
	Events   EventList `json:"Events"`
	Filter   *Filter   `json:"Filter,omitempty"`
}

// Configuration is the NotificationConfiguration resource property.
type Configuration struct {
	LambdaFunctionConfigurations []LambdaFunctionConfiguration `json:"LambdaFunctionConfigurations,omitempty"`
	QueueConfigurations          []QueueConfiguration          `json:"QueueConfigurations,omitempty"`
	TopicConfigurations          []TopicConfiguration          `json:"TopicConfigurations,omitempty"`
	EventBridgeConfiguration     *struct{}                     `json:"EventBridgeConfiguration,omitempty"`
}

// normalize replaces missing event lists with empty ones.
func (c *Configuration) normalize() {
	for i := range c.LambdaFunctionConfigurations {
		if c.LambdaFunctionConfigurations[i].Events == nil {
			c.LambdaFunctionConfigurations[i].Events = EventList{}
		}
	}
	for i := range c.QueueConfigurations {
		if c.QueueConfigurations[i].Events == nil {
			c.QueueConfigurations[i].Events = EventList{}
		}
	}
	for i := range c.TopicConfigurations {
		if c.TopicConfigurations[i].Events == nil {
			c.TopicConfigurations[i].Events = EventList{}
		}
	}
}

// ToS3 converts the configuration to the SDK shape.
func (c Configuration) ToS3() *s3types.NotificationConfiguration {
	out := &s3types.NotificationConfiguration{}
	for _, lc := range c.LambdaFunctionConfigurations {
		out.LambdaFunctionConfigurations = append(out.LambdaFunctionConfigurations, s3types.LambdaFunctionConfiguration{
			Id:                optional(lc.ID),
			LambdaFunctionArn: aws.String(lc.LambdaFunctionArn),
			Events:            toEvents(lc.Events),
			Filter:            lc.Filter.toS3(),
		})
	}
	for _, qc := range c.QueueConfigurations {
		out.QueueConfigurations = append(out.QueueConfigurations, s3types.QueueConfiguration{
			Id:       optional(qc.ID),
			QueueArn: aws.String(qc.QueueArn),
			Events:   toEvents(qc.Events),
			Filter:   qc.Filter.toS3(),
		})
	}
	for _, tc := range c.TopicConfigurations {
		out.TopicConfigurations = append(out.TopicConfigurations, s3types.TopicConfiguration{
			Id:       optional(tc.ID),
			TopicArn: aws.String(tc.TopicArn),
			Events:   toEvents(tc.Events),
			Filter:   tc.Filter.toS3(),
		})
	}
	if c.EventBridgeConfiguration != nil {
		out.EventBridgeConfiguration = &s3types.EventBridgeConfiguration{}
	}
	return out
}

func (f *Filter) toS3() *s3types.NotificationConfigurationFilter {
	if f == nil || f.Key == nil {
		return nil
	}
	rules := make([]s3types.FilterRule, 0, len(f.Key.FilterRules))
	for _, r := range f.Key.FilterRules {
		rules = append(rules, s3types.FilterRule{
			Name:  s3types.FilterRuleName(r.Name),
			Value: aws.String(r.Value),
		})
	}
	return &s3types.NotificationConfigurationFilter{
		Key: &s3types.S3KeyFilter{FilterRules: rules},
	}
}

func toEvents(names EventList) []s3types.Event {
	events := make([]s3types.Event, 0, len(names))
	for _, name := range names {
		events = append(events, s3types.Event(name))
	}
	return events
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// Properties are the custom resource's ResourceProperties.
type Properties struct {
	BucketName                string        `json:"BucketName"`
	NotificationConfiguration Configuration `json:"-"`
}

// ParseProperties decodes ResourceProperties. NotificationConfiguration may be
// an object or a JSON document passed as a string.
func ParseProperties(props map[string]interface{}) (*Properties, error) {
	data, err := json.Marshal(props)
	if err != nil {
		return nil, invalidProperties("ResourceProperties could not be encoded", err)
	}

	var raw struct {
		BucketName                string          `json:"BucketName"`
		NotificationConfiguration json.RawMessage `json:"NotificationConfiguration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidProperties("ResourceProperties are malformed", err)
	}
	if raw.BucketName == "" {
		return nil, invalidProperties("BucketName is required", nil)
	}

	p := &Properties{BucketName: raw.BucketName}

	doc := bytes.TrimSpace(raw.NotificationConfiguration)
	if len(doc) > 0 && doc[0] == '"' {
		var s string
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, invalidProperties("NotificationConfiguration is malformed", err)
		}
		doc = []byte(s)
	}
	if len(doc) > 0 && !bytes.Equal(doc, []byte("null")) {
		if err := json.Unmarshal(doc, &p.NotificationConfiguration); err != nil {
			return nil, invalidProperties("NotificationConfiguration is malformed", err)
		}
	}
	p.NotificationConfiguration.normalize()
	return p, nil
}

// ParseBucketName reads only BucketName, ignoring the rest of the properties.
func ParseBucketName(props map[string]interface{}) (string, error) {
	bucket, _ := props["BucketName"].(string)
	if bucket == "" {
		return "", invalidProperties("BucketName is required", nil)
	}
	return bucket, nil
}

func invalidProperties(message string, err error) error {
	appErr := apperrors.NewValidationError(message, "INVALID_RESOURCE_PROPERTIES", "Fix the custom resource properties in the template.")
	appErr.Err = err
	return appErr
}
