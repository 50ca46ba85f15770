package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tailor/internal/logging"
	"tailor/internal/metrics"
	"tailor/internal/versions"
)

const defaultRegion = "us-east-1"

// Config selects the bucket mirrored versions are copied to.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// Publisher copies registered versions into an S3-compatible bucket.
type Publisher struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logging.NewComponentLogger(logger, "mirror") }
}

// WithMetrics counts uploads on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New configures an uploader for cfg. Credentials come from the default AWS
// chain. A custom endpoint switches to path-style addressing for MinIO and
// similar stores.
func New(ctx context.Context, cfg Config, opts ...Option) (*Publisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("mirror: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 8 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	p := &Publisher{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		logger:   logging.NewComponentLogger(nil, "mirror"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Key returns the object key for filename.
func (p *Publisher) Key(filename string) string {
	return p.prefix + strings.TrimLeft(filename, "/")
}

// Publish uploads the file at path as the object for v and returns its
// s3:// location.
func (p *Publisher) Publish(ctx context.Context, v versions.Version, path string) (string, error) {
	key := p.Key(v.Filename)
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		p.metrics.IncMirror(metrics.OutcomeFailure)
		return "", fmt.Errorf("mirror open %s: %w", v.Filename, err)
	}
	defer f.Close()

	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(v.Filename)),
		Metadata: map[string]string{
			"asset":     v.Asset,
			"parent":    v.Parent,
			"operation": v.Operation,
		},
	})
	if err != nil {
		p.metrics.IncMirror(metrics.OutcomeFailure)
		return "", fmt.Errorf("mirror upload %s: %w", key, err)
	}
	p.metrics.IncMirror(metrics.OutcomeSuccess)

	location := "s3://" + p.bucket + "/" + key
	logging.WithContext(ctx, p.logger).Debug("version mirrored",
		logging.String("location", location),
		logging.Duration("elapsed", time.Since(start)),
	)
	return location, nil
}

// HealthCheck verifies the bucket is reachable with the current credentials.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if _, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", p.bucket, err)
	}
	return nil
}

func contentType(filename string) string {
	switch strings.ToLower(filename[strings.LastIndex(filename, ".")+1:]) {
	case "mp4", "m4v":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	case "avi":
		return "video/x-msvideo"
	case "wmv":
		return "video/x-ms-wmv"
	case "flv":
		return "video/x-flv"
	default:
		return "application/octet-stream"
	}
}
