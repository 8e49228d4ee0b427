// Package mirror copies published documents to an S3-compatible bucket so
// they can be served from static hosting as well as from the built-in server.
package mirror

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cogbench/cogbench/internal/config"
)

// Mirror receives published documents keyed by public id.
type Mirror interface {
	Put(ctx context.Context, publicID, html string) error
	Delete(ctx context.Context, publicID string) error
}

// Nop discards everything. Used when no bucket is configured.
type Nop struct{}

func (Nop) Put(context.Context, string, string) error { return nil }
func (Nop) Delete(context.Context, string) error      { return nil }

// objectAPI is the subset of the S3 client the mirror uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 writes documents to <prefix>/<publicID>/index.html in one bucket.
type S3 struct {
	client objectAPI
	bucket string
	prefix string
}

// New returns Nop when cfg has no bucket, otherwise an S3 mirror.
func New(ctx context.Context, cfg config.MirrorConfig) (Mirror, error) {
	if !cfg.Enabled() {
		return Nop{}, nil
	}
	return NewS3(ctx, cfg)
}

// NewS3 builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.MirrorConfig) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client objectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for publicID.
func (m *S3) Key(publicID string) string {
	return path.Join(m.prefix, publicID, "index.html")
}

// Put uploads html as the document for publicID.
func (m *S3) Put(ctx context.Context, publicID, html string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(m.Key(publicID)),
		Body:         strings.NewReader(html),
		ContentType:  aws.String("text/html; charset=utf-8"),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", m.Key(publicID), err)
	}
	return nil
}

// Delete removes the document for publicID. Deleting a missing key succeeds.
func (m *S3) Delete(ctx context.Context, publicID string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(publicID)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", m.Key(publicID), err)
	}
	return nil
}
