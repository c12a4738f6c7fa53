package form

import (
	"context"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/editor"
	"github.com/debemdeboas/newsdesk/internal/model"
)

// Surface is the rich-text editing capability the form delegates its body
// to. The form only ever exchanges serialised HTML with it.
type Surface interface {
	Init(cfg editor.Config) (editor.Handle, error)
	OnChange(h editor.Handle, fn func(string)) error
	GetData(h editor.Handle) (string, error)
	SetData(h editor.Handle, data string) error
	Destroy(h editor.Handle)
}

// Notifier reports outcomes to the user. Calls are fire-and-forget.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Persister stores a submitted draft.
type Persister interface {
	CreateRecord(ctx context.Context, title, content string, files []attachment.File) (model.RecordID, error)
}

// PreviewRegistry hands out and revokes preview references.
type PreviewRegistry interface {
	Acquire(f attachment.File) attachment.Preview
	Release(p attachment.Preview) bool
}

type Deps struct {
	Surface   Surface
	Notifier  Notifier
	Persister Persister
	Previews  PreviewRegistry
	Policy    attachment.Policy

	// EditorConfig is what the surface is initialised with once the
	// layout is ready.
	EditorConfig editor.Config
}
