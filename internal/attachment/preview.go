package attachment

import (
	"github.com/debemdeboas/newsdesk/internal/cache"
	"github.com/google/uuid"
)

// Preview is a revocable reference to a selected file, served until
// released.
type Preview struct {
	Token string
	URL   string
}

// Previews hands out preview tokens. Every acquired preview must be
// released exactly once; Release reports whether this call was the one
// that released it.
type Previews struct {
	basePath string
	items    *cache.Cache[string, File]
}

// NewPreviews serves previews under basePath, e.g. "/news/previews/".
func NewPreviews(basePath string) *Previews {
	return &Previews{
		basePath: basePath,
		items:    cache.NewCache[string, File](),
	}
}

func (p *Previews) Acquire(f File) Preview {
	token := uuid.NewString()
	p.items.Set(token, f)
	return Preview{Token: token, URL: p.basePath + token}
}

func (p *Previews) Release(pv Preview) bool {
	if pv.Token == "" {
		return false
	}
	_, ok := p.items.Take(pv.Token)
	return ok
}

func (p *Previews) Get(token string) (File, bool) {
	return p.items.Get(token)
}

// Outstanding is the number of acquired, unreleased previews.
func (p *Previews) Outstanding() int {
	return p.items.Len()
}
