package receipt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Client archives rendered receipts in an S3-compatible bucket.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new receipt archive client
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("receipt archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	// Verify the bucket is reachable before the queue starts depending on it.
	if _, err := client.s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
	}

	log.Infof("[Receipt] Archive client initialized for bucket: %s", cfg.BucketName)
	return client, nil
}

// ObjectKey returns the archive key for a sankalp receipt.
func (c *Client) ObjectKey(sankalpUUID string, at time.Time) string {
	return c.config.GetObjectKey(sankalpUUID, at)
}

// Archive uploads a rendered receipt and returns its object URL.
func (c *Client) Archive(ctx context.Context, objectKey, body string) (string, error) {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader([]byte(body)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive receipt: %w", err)
	}

	log.Infof("[Receipt] Archived s3://%s/%s", c.config.BucketName, objectKey)
	return c.objectURL(objectKey), nil
}

func (c *Client) objectURL(objectKey string) string {
	if c.config.EndpointURL != "" {
		return strings.TrimRight(c.config.EndpointURL, "/") + "/" + c.config.BucketName + "/" + objectKey
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.config.BucketName, c.config.Region, objectKey)
}
