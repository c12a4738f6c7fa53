package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/newsdesk/internal/blob"
	"github.com/debemdeboas/newsdesk/internal/cache"
	"github.com/debemdeboas/newsdesk/internal/db"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/debemdeboas/newsdesk/internal/util"
	"github.com/debemdeboas/newsdesk/internal/util/compression"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Concurrent blob uploads per record.
const uploadLimit = 4

type DBNewsRepository struct { // implements NewsRepository
	recordCache *cache.Cache[model.RecordID, *model.Record]

	db         db.DB
	blobs      blob.Store
	compressor compression.Compressor
}

func NewDBNewsRepository(db db.DB, blobs blob.Store) *DBNewsRepository {
	return &DBNewsRepository{
		recordCache: cache.NewCache[model.RecordID, *model.Record](),

		db:    db,
		blobs: blobs,

		compressor: compression.ZstdCompressor{},
	}
}

func blobKey(id model.ImageID, contentType string) string {
	if mt := mimetype.Lookup(contentType); mt != nil {
		return string(id) + mt.Extension()
	}
	return string(id)
}

// Create uploads the attachments, then stores the record and its image rows
// in one transaction. Uploaded blobs are removed again if anything fails.
func (r *DBNewsRepository) Create(ctx context.Context, rec NewRecord) (model.RecordID, error) {
	now := time.Now().UTC()
	created := rec.Created.UTC()
	if rec.Created.IsZero() {
		created = now
	}

	record := model.Record{
		ID:           model.RecordID(uuid.New().String()),
		Title:        rec.Title,
		Slug:         util.Slugify(rec.Title),
		ContentHTML:  rec.Content,
		Owner:        rec.Owner,
		CreatedDate:  created,
		ModifiedDate: now,
	}

	for i, f := range rec.Files {
		id := model.ImageID(uuid.New().String())
		record.Images = append(record.Images, model.Image{
			ID:          id,
			RecordID:    record.ID,
			Position:    i,
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
			Width:       f.Width,
			Height:      f.Height,
			BlobKey:     blobKey(id, f.ContentType),
		})
	}

	var (
		mu       sync.Mutex
		uploaded []string
	)
	cleanup := func() {
		// The request context may already be gone.
		ctx := context.WithoutCancel(ctx)
		for _, key := range uploaded {
			if err := r.blobs.Delete(ctx, key); err != nil {
				repoLogger.Warn().Err(err).Str("key", key).Msg("Failed to remove orphaned blob")
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadLimit)
	for i, img := range record.Images {
		data := rec.Files[i].Data
		g.Go(func() error {
			if err := r.blobs.Put(gctx, img.BlobKey, img.ContentType, data); err != nil {
				return fmt.Errorf("upload %s: %w", img.Name, err)
			}
			mu.Lock()
			uploaded = append(uploaded, img.BlobKey)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cleanup()
		return "", err
	}

	if err := r.insert(ctx, &record); err != nil {
		cleanup()
		return "", err
	}

	repoLogger.Info().
		Str("record_id", string(record.ID)).
		Str("title", record.Title).
		Int("images", len(record.Images)).
		Msg("Record saved")

	r.recordCache.Set(record.ID, &record)
	return record.ID, nil
}

func (r *DBNewsRepository) insert(ctx context.Context, record *model.Record) error {
	compressed, err := r.compressor.Compress([]byte(record.ContentHTML))
	if err != nil {
		return fmt.Errorf("error compressing content: %w", err)
	}
	record.ContentHash = util.ContentHash(compressed)

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var owner sql.NullString
	if record.Owner != "" {
		owner = sql.NullString{String: string(record.Owner), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO news (id, title, slug, content, content_hash, user_id, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Title, record.Slug, compressed, record.ContentHash, owner, record.CreatedDate, record.ModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("error saving record: %w", err)
	}

	for _, img := range record.Images {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO news_images (id, news_id, position, name, content_type, size, width, height, blob_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.ID, img.RecordID, img.Position, img.Name, img.ContentType, img.Size, img.Width, img.Height, img.BlobKey,
		)
		if err != nil {
			return fmt.Errorf("error saving image %s: %w", img.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing record: %w", err)
	}
	return nil
}

const selectRecord = `SELECT id, title, slug, content, content_hash, COALESCE(user_id, ''), created_at, modified_at FROM news`

func (r *DBNewsRepository) scanRecord(rows *sql.Rows) (model.Record, error) {
	var rec model.Record
	var compressed []byte

	err := rows.Scan(&rec.ID, &rec.Title, &rec.Slug, &compressed, &rec.ContentHash, &rec.Owner, &rec.CreatedDate, &rec.ModifiedDate)
	if err != nil {
		return rec, fmt.Errorf("error scanning record: %w", err)
	}

	content, err := r.compressor.Decompress(compressed)
	if err != nil {
		return rec, fmt.Errorf("error decompressing content: %w", err)
	}
	rec.ContentHTML = string(content)
	return rec, nil
}

func (r *DBNewsRepository) ListRecords(ctx context.Context, limit, offset int) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying records: %w", err)
	}

	records := make([]model.Record, 0, limit)
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	err = errors.Join(rows.Err(), rows.Close())
	if err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	if len(records) == 0 {
		return records, nil
	}

	ids := make([]any, len(records))
	byID := make(map[model.RecordID]*model.Record, len(records))
	for i := range records {
		ids[i] = records[i].ID
		byID[records[i].ID] = &records[i]
	}

	images, err := r.images(ctx, `news_id IN (?`+strings.Repeat(`, ?`, len(ids)-1)+`)`, ids...)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		rec := byID[img.RecordID]
		rec.Images = append(rec.Images, img)
	}

	return records, nil
}

func (r *DBNewsRepository) GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error) {
	if rec, ok := r.recordCache.Get(id); ok {
		return rec, nil
	}

	rows, err := r.db.QueryContext(ctx, selectRecord+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying record: %w", err)
	}
	if !rows.Next() {
		err := errors.Join(rows.Err(), rows.Close())
		if err != nil {
			return nil, fmt.Errorf("error querying record: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec, err := r.scanRecord(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	rec.Images, err = r.images(ctx, `news_id = ?`, id)
	if err != nil {
		return nil, err
	}

	r.recordCache.Set(id, &rec)
	return &rec, nil
}

func (r *DBNewsRepository) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Get().QueryRowContext(ctx, `SELECT COUNT(*) FROM news`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting records: %w", err)
	}
	return n, nil
}

func (r *DBNewsRepository) OpenImage(ctx context.Context, id model.ImageID) (*model.Image, blob.Object, error) {
	images, err := r.images(ctx, `id = ?`, id)
	if err != nil {
		return nil, blob.Object{}, err
	}
	if len(images) == 0 {
		return nil, blob.Object{}, fmt.Errorf("%w: image %s", ErrNotFound, id)
	}

	img := images[0]
	obj, err := r.blobs.Get(ctx, img.BlobKey)
	if err != nil {
		return nil, blob.Object{}, err
	}
	if obj.ContentType == "" {
		obj.ContentType = img.ContentType
	}
	return &img, obj, nil
}

func (r *DBNewsRepository) images(ctx context.Context, where string, args ...any) ([]model.Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, news_id, position, name, content_type, size, width, height, blob_key FROM news_images WHERE `+where+` ORDER BY news_id, position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		var img model.Image
		err := rows.Scan(&img.ID, &img.RecordID, &img.Position, &img.Name, &img.ContentType, &img.Size, &img.Width, &img.Height, &img.BlobKey)
		if err != nil {
			return nil, fmt.Errorf("error scanning image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading images: %w", err)
	}
	return images, nil
}
