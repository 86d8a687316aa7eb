package storage

// DefaultRegion is used when neither the config nor the environment names one.
const DefaultRegion = "us-east-1"

// Config holds S3 client configuration. Inside Lambda only Region is normally
// set; Endpoint and the static keys exist for LocalStack and MinIO.
type Config struct {
	Region string

	// Endpoint is a custom S3-compatible endpoint.
	Endpoint string

	AccessKey string
	SecretKey string
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}
