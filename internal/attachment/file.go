// Package attachment describes selected image files, the policy they are
// checked against and the temporary previews shown while a draft is open.
package attachment

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// File is one selected file held in memory until the draft is submitted.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Width       int
	Height      int

	Data []byte
}

// NewFile builds a File from raw bytes and probes its type and dimensions.
func NewFile(name string, data []byte) File {
	f := File{
		Name: filepath.Base(name),
		Size: int64(len(data)),
		Data: data,
	}
	f.probe()
	return f
}

// FromMultipart reads an uploaded part. Parts larger than maxBytes are
// truncated at maxBytes+1 so the policy can still report them as too large
// without buffering the whole upload.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	src, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer src.Close()

	var r io.Reader = src
	if maxBytes > 0 {
		r = io.LimitReader(src, maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}

	f := NewFile(fh.Filename, data)
	if fh.Size > f.Size {
		f.Size = fh.Size
	}
	return f, nil
}

func (f *File) probe() {
	mt := mimetype.Detect(f.Data)
	f.ContentType = mt.String()
	if i := strings.IndexByte(f.ContentType, ';'); i != -1 {
		f.ContentType = f.ContentType[:i]
	}

	if mt.Is("image/svg+xml") {
		f.Width, f.Height = svgSize(f.Data)
		return
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		f.Width, f.Height = cfg.Width, cfg.Height
	}
}

// svgSize reads width/height from the root element, falling back to the
// viewBox. Unknown sizes are reported as 0.
func svgSize(data []byte) (int, int) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "svg" {
			continue
		}

		var w, h int
		var viewBox string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "width":
				w = svgLength(attr.Value)
			case "height":
				h = svgLength(attr.Value)
			case "viewBox":
				viewBox = attr.Value
			}
		}
		if (w == 0 || h == 0) && viewBox != "" {
			fields := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
			if len(fields) == 4 {
				if w == 0 {
					w = svgLength(fields[2])
				}
				if h == 0 {
					h = svgLength(fields[3])
				}
			}
		}
		return w, h
	}
}

func svgLength(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f + 0.5)
}
