// Package archive keeps a copy of every raw upstream payload in an
// S3-compatible bucket, keyed as {prefix}/{kind}/{id}.json.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mrlokans/catalogmirror/internal/config"
)

// Archiver stores raw payloads.
type Archiver interface {
	Put(ctx context.Context, kind string, id int, body []byte) error
}

// Noop discards payloads; used when archiving is disabled.
type Noop struct{}

func (Noop) Put(context.Context, string, int, []byte) error { return nil }

// objectPutter is the slice of the S3 client the archive needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archive struct {
	client objectPutter
	bucket string
	prefix string
}

// New returns Noop when archiving is disabled, an S3Archive otherwise.
func New(ctx context.Context, cfg config.Archive) (Archiver, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive enabled but no bucket configured")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = true
	})

	return newS3Archive(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archive(client objectPutter, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for one payload.
func (a *S3Archive) Key(kind string, id int) string {
	return path.Join(a.prefix, kind, strconv.Itoa(id)+".json")
}

func (a *S3Archive) Put(ctx context.Context, kind string, id int, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.Key(kind, id)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s/%d: %w", kind, id, err)
	}
	return nil
}

// endpointURL accepts "host:port" or a full URL.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimRight(endpoint, "/")
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(endpoint, "/")
}
