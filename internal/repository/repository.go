// Package repository persists news records and their image attachments.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/blob"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/rs/zerolog"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

var ErrNotFound = errors.New("record not found")

// NewRecord is a record about to be stored. A zero Created means now.
type NewRecord struct {
	Owner   model.UserID
	Title   string
	Content string
	Files   []attachment.File
	Created time.Time
}

type NewsRepository interface {
	Create(ctx context.Context, rec NewRecord) (model.RecordID, error)

	// ListRecords returns records newest first.
	ListRecords(ctx context.Context, limit, offset int) ([]model.Record, error)
	GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error)
	CountRecords(ctx context.Context) (int, error)

	// OpenImage returns a stored image and its bytes.
	OpenImage(ctx context.Context, id model.ImageID) (*model.Image, blob.Object, error)
}

// OwnedPersister creates records on behalf of one user. It is what a news
// form submits through.
type OwnedPersister struct {
	Repo  NewsRepository
	Owner model.UserID
}

func (p OwnedPersister) CreateRecord(ctx context.Context, title, content string, files []attachment.File) (model.RecordID, error) {
	return p.Repo.Create(ctx, NewRecord{
		Owner:   p.Owner,
		Title:   title,
		Content: content,
		Files:   files,
	})
}
