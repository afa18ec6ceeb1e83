package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadPNG(t *testing.T) {
	fake := &fakeS3{}
	store := newCreativeStore(Config{Bucket: "ads", PublicBaseURL: "https://cdn.example/"}, fake)
	store.now = func() time.Time { return time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC) }

	url, err := store.Upload(context.Background(), "acc-1", pngHeader)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://cdn.example/creatives/acc-1/2025/07/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
	assert.Equal(t, "ads", *fake.input.Bucket)
	assert.Equal(t, "image/png", *fake.input.ContentType)
	assert.Equal(t, pngHeader, fake.body)
}

func TestUploadRejectsNonImages(t *testing.T) {
	store := newCreativeStore(Config{Bucket: "ads", PublicBaseURL: "https://cdn.example"}, &fakeS3{})

	_, err := store.Upload(context.Background(), "acc-1", []byte("plain text, not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedCreative)

	_, err = store.Upload(context.Background(), "acc-1", nil)
	assert.ErrorIs(t, err, ErrUnsupportedCreative)
}

func TestUploadRejectsOversized(t *testing.T) {
	store := newCreativeStore(Config{Bucket: "ads", PublicBaseURL: "https://cdn.example", MaxBytes: 8}, &fakeS3{})
	_, err := store.Upload(context.Background(), "acc-1", pngHeader)
	assert.ErrorIs(t, err, ErrUnsupportedCreative)
}

func TestUploadWrapsS3Error(t *testing.T) {
	store := newCreativeStore(Config{Bucket: "ads", PublicBaseURL: "https://cdn.example"}, &fakeS3{err: errors.New("denied")})
	_, err := store.Upload(context.Background(), "acc-1", pngHeader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestNewCreativeStoreValidates(t *testing.T) {
	_, err := NewCreativeStore(Config{})
	assert.Error(t, err)

	store, err := NewCreativeStore(Config{Bucket: "b", Region: "ap-south-1", AccessKey: "a", SecretKey: "s", PublicBaseURL: "https://cdn"})
	require.NoError(t, err)
	assert.Equal(t, "creatives", store.cfg.Prefix)
}
