package attachment

import (
	"fmt"
	"slices"

	"github.com/debemdeboas/newsdesk/internal/config"
)

// Policy constrains accepted files. The zero Policy accepts everything.
type Policy struct {
	AllowedTypes []string
	MaxWidth     int
	MaxHeight    int
	MaxBytes     int64
}

func PolicyFromConfig(cfg config.AttachmentsConfig) Policy {
	if !cfg.Enforce {
		return Policy{}
	}
	return Policy{
		AllowedTypes: cfg.AllowedTypes,
		MaxWidth:     cfg.MaxWidth,
		MaxHeight:    cfg.MaxHeight,
		MaxBytes:     cfg.MaxBytes,
	}
}

// Violation names the file and the first constraint it breaks.
type Violation struct {
	Name   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Name, v.Reason)
}

func (p Policy) Check(f File) error {
	if len(p.AllowedTypes) > 0 && !slices.Contains(p.AllowedTypes, f.ContentType) {
		return &Violation{Name: f.Name, Reason: fmt.Sprintf("type %s is not allowed", f.ContentType)}
	}
	if p.MaxBytes > 0 && f.Size > p.MaxBytes {
		return &Violation{Name: f.Name, Reason: fmt.Sprintf("size %d exceeds %d bytes", f.Size, p.MaxBytes)}
	}
	if p.MaxWidth > 0 && f.Width > p.MaxWidth {
		return &Violation{Name: f.Name, Reason: fmt.Sprintf("width %dpx exceeds %dpx", f.Width, p.MaxWidth)}
	}
	if p.MaxHeight > 0 && f.Height > p.MaxHeight {
		return &Violation{Name: f.Name, Reason: fmt.Sprintf("height %dpx exceeds %dpx", f.Height, p.MaxHeight)}
	}
	return nil
}
