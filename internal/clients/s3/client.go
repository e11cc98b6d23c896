package s3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// BlobStore is the blob-store collaborator the worker uploads raw segments
// to and the query surface presigns download links from.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type blobStore struct {
	log     *logger.Logger
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
}

func NewBlobStore(log *logger.Logger, region, bucket string) (BlobStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing blob_bucket")
	}
	region = strings.TrimSpace(region)
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cl := s3.NewFromConfig(cfg)
	return &blobStore{
		log:     log.With("client", "S3BlobStore"),
		client:  cl,
		presign: s3.NewPresignClient(cl),
		bucket:  bucket,
		region:  region,
	}, nil
}

// Put uploads body under key and returns the canonical (non-presigned) URL.
// Objects are stored with AES256 server-side encryption.
func (bs *blobStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = "video/mp4"
	}
	_, err := bs.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(bs.bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ContentType:          aws.String(contentType),
		ServerSideEncryption: "AES256",
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %q: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bs.bucket, bs.region, key), nil
}

func (bs *blobStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	out, err := bs.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bs.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign %q: %w", key, err)
	}
	return out.URL, nil
}

// KeyForSegment produces the required upload path for a raw segment file.
func KeyForSegment(basename string) string {
	return "video_segments/" + strings.TrimPrefix(basename, "/")
}
