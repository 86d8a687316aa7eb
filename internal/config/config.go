package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAssemblyAIBaseURL      = "https://api.assemblyai.com"
	DefaultPollInterval           = 3 * time.Second
	DefaultPollMaxAttempts        = 1200
	DefaultPresignExpiry          = time.Hour
	DefaultNotificationApplyDelay = 5 * time.Second
	DefaultDeadlineMargin         = 10 * time.Second
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	APIKey            string
	TranscriptBucket  string
	AssemblyAIBaseURL string

	AWSRegion      string
	AWSEndpointURL string
	AWSAccessKey   string
	AWSSecretKey   string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	Pipeline PipelineConfig
}

type PipelineConfig struct {
	PollInterval           time.Duration `yaml:"poll_interval"`
	PollMaxAttempts        int           `yaml:"poll_max_attempts"`
	PresignExpiry          time.Duration `yaml:"presign_expiry"`
	NotificationApplyDelay time.Duration `yaml:"notification_apply_delay"`
	// DeadlineMargin is reserved before the invocation deadline for the
	// response, the callback and the telemetry flush.
	DeadlineMargin time.Duration `yaml:"deadline_margin"`

	// pollAttemptsSet and applyDelaySet distinguish an explicit zero from an
	// unset value. Zero attempts leaves the wait bounded only by the deadline.
	pollAttemptsSet bool
	applyDelaySet   bool
}

// Load reads configuration from the environment and an optional config.yaml.
// It does not validate required values; each entry point calls the
// validator that matches its handler.
func Load() (*Config, error) {
	return LoadFrom("config.yaml")
}

func LoadFrom(yamlPath string) (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		APIKey:                   firstNonEmpty(os.Getenv("API_KEY"), os.Getenv("ASSEMBLYAI_API_KEY")),
		TranscriptBucket:         os.Getenv("TRANSCRIPT_BUCKET"),
		AssemblyAIBaseURL:        os.Getenv("ASSEMBLYAI_BASE_URL"),
		AWSRegion:                os.Getenv("AWS_REGION"),
		AWSEndpointURL:           os.Getenv("AWS_ENDPOINT_URL"),
		AWSAccessKey:             os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:             os.Getenv("AWS_SECRET_ACCESS_KEY"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
	}

	if err := cfg.loadPipelineEnv(); err != nil {
		return nil, err
	}

	// Load from YAML file if available
	if err := cfg.LoadFromYAML(yamlPath); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "socialchef-scribe"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.AssemblyAIBaseURL == "" {
		cfg.AssemblyAIBaseURL = DefaultAssemblyAIBaseURL
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.SetPipelineDefaults()

	return cfg, nil
}

func (c *Config) loadPipelineEnv() error {
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err)
		}
		c.Pipeline.PollInterval = d
	}
	if v := os.Getenv("POLL_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid POLL_MAX_ATTEMPTS %q: %w", v, err)
		}
		c.Pipeline.PollMaxAttempts = n
		c.Pipeline.pollAttemptsSet = true
	}
	if v := os.Getenv("PRESIGN_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PRESIGN_EXPIRY %q: %w", v, err)
		}
		c.Pipeline.PresignExpiry = d
	}
	if v := os.Getenv("NOTIFICATION_APPLY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFICATION_APPLY_DELAY %q: %w", v, err)
		}
		c.Pipeline.NotificationApplyDelay = d
		c.Pipeline.applyDelaySet = true
	}
	if v := os.Getenv("DEADLINE_MARGIN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DEADLINE_MARGIN %q: %w", v, err)
		}
		c.Pipeline.DeadlineMargin = d
	}
	return nil
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Pipeline struct {
			PollInterval           string `yaml:"poll_interval"`
			PollMaxAttempts        *int   `yaml:"poll_max_attempts"`
			PresignExpiry          string `yaml:"presign_expiry"`
			NotificationApplyDelay string `yaml:"notification_apply_delay"`
			DeadlineMargin         string `yaml:"deadline_margin"`
		} `yaml:"pipeline"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment values win over the file.
	p := yamlConfig.Pipeline
	if p.PollInterval != "" && c.Pipeline.PollInterval == 0 {
		d, err := time.ParseDuration(p.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid pipeline.poll_interval: %w", err)
		}
		c.Pipeline.PollInterval = d
	}
	if p.PollMaxAttempts != nil && !c.Pipeline.pollAttemptsSet {
		c.Pipeline.PollMaxAttempts = *p.PollMaxAttempts
		c.Pipeline.pollAttemptsSet = true
	}
	if p.PresignExpiry != "" && c.Pipeline.PresignExpiry == 0 {
		d, err := time.ParseDuration(p.PresignExpiry)
		if err != nil {
			return fmt.Errorf("invalid pipeline.presign_expiry: %w", err)
		}
		c.Pipeline.PresignExpiry = d
	}
	if p.NotificationApplyDelay != "" && !c.Pipeline.applyDelaySet {
		d, err := time.ParseDuration(p.NotificationApplyDelay)
		if err != nil {
			return fmt.Errorf("invalid pipeline.notification_apply_delay: %w", err)
		}
		c.Pipeline.NotificationApplyDelay = d
		c.Pipeline.applyDelaySet = true
	}
	if p.DeadlineMargin != "" && c.Pipeline.DeadlineMargin == 0 {
		d, err := time.ParseDuration(p.DeadlineMargin)
		if err != nil {
			return fmt.Errorf("invalid pipeline.deadline_margin: %w", err)
		}
		c.Pipeline.DeadlineMargin = d
	}

	return nil
}

func (c *Config) SetPipelineDefaults() {
	if c.Pipeline.PollInterval <= 0 {
		c.Pipeline.PollInterval = DefaultPollInterval
	}
	if !c.Pipeline.pollAttemptsSet || c.Pipeline.PollMaxAttempts < 0 {
		c.Pipeline.PollMaxAttempts = DefaultPollMaxAttempts
		c.Pipeline.pollAttemptsSet = true
	}
	if c.Pipeline.PresignExpiry <= 0 {
		c.Pipeline.PresignExpiry = DefaultPresignExpiry
	}
	if !c.Pipeline.applyDelaySet || c.Pipeline.NotificationApplyDelay < 0 {
		c.Pipeline.NotificationApplyDelay = DefaultNotificationApplyDelay
		c.Pipeline.applyDelaySet = true
	}
	if c.Pipeline.DeadlineMargin <= 0 {
		c.Pipeline.DeadlineMargin = DefaultDeadlineMargin
	}
}

// ValidateIngest checks the values the transcription handler cannot run without.
func (c *Config) ValidateIngest() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY environment variable is not set")
	}
	if c.TranscriptBucket == "" {
		return fmt.Errorf("TRANSCRIPT_BUCKET environment variable is not set")
	}
	return nil
}

// ParseHeaders parses OTEL_EXPORTER_OTLP_HEADERS ("k1=v1,k2=v2").
func (c *Config) ParseHeaders() map[string]string {
	if c.OtelExporterOTLPHeaders == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.OtelExporterOTLPHeaders, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
