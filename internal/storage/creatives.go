// Package storage uploads ad creatives to S3-compatible object storage
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// ErrUnsupportedCreative is returned for uploads that are empty, too large or
// not an image
var ErrUnsupportedCreative = errors.New("unsupported creative")

// Config holds object storage settings
type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
	MaxBytes      int64
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CreativeStore writes creatives and returns their public image URL
type CreativeStore struct {
	cfg    Config
	client objectPutter
	now    func() time.Time
}

// NewCreativeStore builds an S3 client from cfg
func NewCreativeStore(cfg Config) (*CreativeStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return newCreativeStore(cfg, s3.New(options)), nil
}

func newCreativeStore(cfg Config, client objectPutter) *CreativeStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "creatives"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	return &CreativeStore{cfg: cfg, client: client, now: time.Now}
}

// Upload stores an image for accountID. The content type is sniffed from the
// bytes; the caller-supplied header is not trusted.
func (s *CreativeStore) Upload(ctx context.Context, accountID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrUnsupportedCreative)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrUnsupportedCreative, len(data), s.cfg.MaxBytes)
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCreative, contentType)
	}

	key := s.key(accountID, ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload creative to s3: %w", err)
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func (s *CreativeStore) key(accountID, ext string) string {
	now := s.now().UTC()
	return path.Join(strings.Trim(s.cfg.Prefix, "/"), accountID,
		fmt.Sprintf("%04d/%02d", now.Year(), now.Month()), uuid.NewString()+ext)
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}
