// Package model defines the persisted news records and the page data shared
// by the templates.
package model

import (
	"html/template"
	"time"
)

type RecordID string

type UserID string

type ImageID string

// Record is a published news article.
type Record struct {
	ID RecordID

	Title       string
	Slug        string
	ContentHTML string

	// Hash of the stored (compressed) body, used for ETags.
	ContentHash string

	Images []Image

	Owner        UserID
	CreatedDate  time.Time
	ModifiedDate time.Time
}

// Content returns the body ready for a template. The body was sanitised
// when it entered the editor surface.
func (r *Record) Content() template.HTML {
	return template.HTML(r.ContentHTML)
}

// Cover returns the first image, if any.
func (r *Record) Cover() (Image, bool) {
	if len(r.Images) == 0 {
		return Image{}, false
	}
	return r.Images[0], true
}

// Image is an attachment stored alongside a record.
type Image struct {
	ID       ImageID
	RecordID RecordID
	Position int

	Name        string
	ContentType string
	Size        int64
	Width       int
	Height      int

	BlobKey string
}
