// Package blob stores image attachments outside the database, on the local
// filesystem or in an S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"

	cfg "github.com/debemdeboas/newsdesk/internal/config"
	"github.com/rs/zerolog"
)

var blobLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	blobLogger = l
}

var ErrNotFound = errors.New("blob not found")

// Object is a stored blob and the content type it was stored with.
type Object struct {
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// FromConfig builds the store selected by storage.blobs. Credentials for
// the s3 driver come from S3_ACCESS_KEY_ID and S3_ACCESS_KEY_SECRET.
func FromConfig(ctx context.Context, c cfg.BlobConfig) (Store, error) {
	switch c.Driver {
	case cfg.BlobDriverFS:
		return NewFSStore(c.Dir)
	case cfg.BlobDriverS3:
		return NewS3Store(ctx, S3Options{
			Bucket:          c.Bucket,
			Endpoint:        c.Endpoint,
			Region:          c.Region,
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("S3_ACCESS_KEY_SECRET"),
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", c.Driver)
	}
}
