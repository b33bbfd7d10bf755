// Package storage keeps image bytes in S3 for the catalogue.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decode support
	_ "image/jpeg" // JPEG decode support
	_ "image/png"  // PNG decode support
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // WebP decode support

	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// MaxImageBytes caps the size of a stored image.
const MaxImageBytes = 10 << 20

// SupportedImageTypes lists the content types the store accepts.
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ObjectPutter is the slice of the S3 API the store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ImageStore uploads image bytes to S3 and describes them as domain images.
type ImageStore struct {
	s3     ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// Config holds the S3 settings for the image store.
type Config struct {
	Bucket string
	Prefix string
}

// NewImageStore creates an image store on top of an S3 client.
func NewImageStore(client ObjectPutter, cfg Config) *ImageStore {
	return &ImageStore{
		s3:     client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}
}

// Put stores data under the place image layout and returns an unsaved
// Image describing it. The caller persists the row.
func (s *ImageStore) Put(ctx context.Context, data []byte, altText, uploadedBy string) (*domain.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image size %d exceeds maximum of %d bytes", len(data), MaxImageBytes)
	}

	contentType := DetectContentType(data)
	if !SupportedImageTypes[contentType] {
		return nil, fmt.Errorf("unsupported image type: %s", contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	now := s.now().UTC()
	id := uuid.New().String()
	key := s.PlaceKey(now, id, contentType)

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s to S3: %w", key, err)
	}

	return &domain.Image{
		ID:          id,
		UploadedBy:  uploadedBy,
		S3Key:       key,
		AltText:     altText,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
		UploadedAt:  now,
	}, nil
}

// PlaceKey builds "<prefix>places/<yyyy>/<mm>/<id><ext>".
func (s *ImageStore) PlaceKey(t time.Time, id, contentType string) string {
	return fmt.Sprintf("%splaces/%s/%s/%s%s", s.prefix, t.Format("2006"), t.Format("01"), id, extension(contentType))
}

// DetectContentType sniffs the image format from magic bytes.
func DetectContentType(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 8 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return "image/png"
	case len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F':
		return "image/gif"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
