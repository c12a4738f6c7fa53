// Package util provides content hashing, slugs and front matter parsing for
// imported articles.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
	"github.com/mmarkdown/mmark/v2/mast"
)

var ErrNoFrontMatter = errors.New("invalid front matter format")

var frontMatterDelimiter = []byte("%%%")

// FrontMatter is the mmark title block of an article plus the markdown
// that follows it.
type FrontMatter struct {
	*mast.TitleData
	Body []byte
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// GetFrontMatter parses a leading %%% ... %%% TOML block.
func GetFrontMatter(md []byte) (*FrontMatter, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	if !bytes.HasPrefix(md, append(frontMatterDelimiter, '\n')) {
		return nil, ErrNoFrontMatter
	}

	rest := md[len(frontMatterDelimiter)+1:]

	var block, body []byte
	if bytes.HasPrefix(rest, frontMatterDelimiter) {
		// Empty block
		body = rest[len(frontMatterDelimiter):]
	} else {
		closing := bytes.Index(rest, append([]byte{'\n'}, frontMatterDelimiter...))
		if closing == -1 {
			return nil, ErrNoFrontMatter
		}
		block = rest[:closing]
		body = rest[closing+1+len(frontMatterDelimiter):]
	}

	info := &FrontMatter{TitleData: &mast.TitleData{}}
	if _, err := toml.Decode(string(block), info.TitleData); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}
	if info.Language == "" {
		info.Language = "en"
	}
	info.Body = bytes.TrimLeft(body, "\n")

	return info, nil
}

// Slugify lowercases s and joins its letter and digit runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
