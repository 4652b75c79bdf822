package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/crosspost/configs"
)

// R2Service reads media assets that live in our own Cloudflare R2 bucket
// straight from object storage instead of through the public CDN URL.
type R2Service struct {
	client     *s3.Client
	bucket     string
	publicHost string
}

// NewR2Service returns nil when R2 is not configured; a nil *R2Service owns
// no URLs.
func NewR2Service(ctx context.Context, c cfg.Config) (*R2Service, error) {
	if c.R2.AccessKey == "" || c.R2.BucketName == "" || c.R2.PublicHost == "" {
		return nil, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})
	return NewR2ServiceWithClient(client, c.R2.BucketName, c.R2.PublicHost), nil
}

func NewR2ServiceWithClient(client *s3.Client, bucket, publicHost string) *R2Service {
	return &R2Service{client: client, bucket: bucket, publicHost: publicHost}
}

// Owns reports whether u points at an object in our bucket.
func (r *R2Service) Owns(u *url.URL) bool {
	return r != nil && u != nil && strings.EqualFold(u.Host, r.publicHost)
}

func (r *R2Service) Open(ctx context.Context, u *url.URL) (*MediaFile, error) {
	key := strings.TrimPrefix(u.Path, "/")
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("reading %s from r2: %w", key, err)
	}

	file := &MediaFile{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Size:        -1,
	}
	if out.ContentLength != nil {
		file.Size = *out.ContentLength
	}
	return file, nil
}
