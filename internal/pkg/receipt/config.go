package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
)

// Config holds receipt archive (S3) configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads receipt archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("RECEIPT_ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the receipt archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the receipt archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the receipt archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the receipt archive is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates the archive key for a sankalp receipt.
// Format: receipts/YYYY/MM/UUID.txt
func (c *Config) GetObjectKey(sankalpUUID string, at time.Time) string {
	return fmt.Sprintf("receipts/%04d/%02d/%s.txt", at.Year(), int(at.Month()), sankalpUUID)
}
