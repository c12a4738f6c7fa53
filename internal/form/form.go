// Package form implements the news record creation form: a draft made of a
// title, a rich-text body and image attachments, validated and handed to a
// persister on submission.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/config"
	"github.com/debemdeboas/newsdesk/internal/editor"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

var formLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	formLogger = l
}

// PendingImage is a selected file and the preview shown for it.
type PendingImage struct {
	File    attachment.File
	Preview attachment.Preview
}

// Draft is the unsaved record being composed.
type Draft struct {
	Title   string
	Content string
	Images  []*PendingImage
}

// Form holds one draft. Events are applied one at a time; a submission
// holds the form for its whole duration.
type Form struct {
	deps Deps

	mu      sync.Mutex
	draft   Draft
	mounted bool
	ready   bool
	handle  editor.Handle
	config  editor.Config

	submit     *semaphore.Weighted
	submitting atomic.Bool
}

func New(deps Deps) *Form {
	return &Form{
		deps:   deps,
		submit: semaphore.NewWeighted(1),
	}
}

// Mount starts a fresh draft. The editing surface is not built until
// LayoutReady.
func (f *Form) Mount() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mounted {
		return
	}
	f.mounted = true
	f.ready = false
	f.config = editor.Config{}
	f.draft = Draft{}
}

// LayoutReady marks the host layout as stable. The surface is initialised
// on the first call after Mount only; later calls return the same config.
func (f *Form) LayoutReady(ctx context.Context) (editor.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.mounted {
		return editor.Config{}, ErrNotMounted
	}
	if f.ready {
		return f.config, nil
	}
	if err := ctx.Err(); err != nil {
		return editor.Config{}, err
	}

	h, err := f.deps.Surface.Init(f.deps.EditorConfig)
	if err != nil {
		return editor.Config{}, fmt.Errorf("init editor surface: %w", err)
	}
	if err := f.deps.Surface.OnChange(h, f.SetContent); err != nil {
		f.deps.Surface.Destroy(h)
		return editor.Config{}, fmt.Errorf("subscribe to editor changes: %w", err)
	}

	f.handle = h
	f.ready = true
	f.config = f.deps.EditorConfig

	formLogger.Debug().Str("handle", string(h)).Msg("Editor surface ready")
	return f.config, nil
}

// Unmount tears the form down: the surface is destroyed, every outstanding
// preview is released and the draft is discarded.
func (f *Form) Unmount() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.mounted {
		return
	}
	if f.ready {
		f.deps.Surface.Destroy(f.handle)
	}
	f.releaseAll()

	f.mounted = false
	f.ready = false
	f.handle = ""
	f.config = editor.Config{}
	f.draft = Draft{}
}

// SetTitle replaces the title. It is ignored once the form is unmounted.
func (f *Form) SetTitle(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounted {
		f.draft.Title = v
	}
}

// SetContent replaces the body. It is also the surface change callback.
func (f *Form) SetContent(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounted {
		f.draft.Content = v
	}
}

// AddImages appends files in selection order. Files rejected by the policy
// are reported one by one and returned joined; the rest are still added.
// An unmounted form takes nothing and returns ErrNotMounted.
func (f *Form) AddImages(files ...attachment.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.mounted {
		return ErrNotMounted
	}

	var errs []error
	for _, file := range files {
		if err := f.deps.Policy.Check(file); err != nil {
			msg := fmt.Sprintf(config.MsgInvalidAttachment, err)
			f.deps.Notifier.Error(msg)
			errs = append(errs, &Error{Kind: InvalidAttachment, Message: msg, Err: err})
			continue
		}
		f.draft.Images = append(f.draft.Images, &PendingImage{
			File:    file,
			Preview: f.deps.Previews.Acquire(file),
		})
	}
	return errors.Join(errs...)
}

// RemoveImage drops the image at i and releases its preview. An index out
// of range leaves the draft untouched and reports false.
func (f *Form) RemoveImage(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i < 0 || i >= len(f.draft.Images) {
		return false
	}
	img := f.draft.Images[i]
	f.draft.Images = append(f.draft.Images[:i:i], f.draft.Images[i+1:]...)
	f.deps.Previews.Release(img.Preview)
	return true
}

// Submit validates the draft and hands it to the persister. Only one
// submission runs at a time; a concurrent call is rejected with
// ErrSubmissionInProgress. On failure the draft is kept for a retry.
func (f *Form) Submit(ctx context.Context) (model.RecordID, error) {
	if !f.submit.TryAcquire(1) {
		f.deps.Notifier.Error(config.MsgSubmissionPending)
		return "", ErrSubmissionInProgress
	}
	defer f.submit.Release(1)

	f.submitting.Store(true)
	defer f.submitting.Store(false)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.mounted {
		return "", ErrNotMounted
	}

	title := strings.TrimSpace(f.draft.Title)
	content := strings.TrimSpace(f.draft.Content)
	if title == "" || editor.IsBlank(content) {
		f.deps.Notifier.Error(config.MsgFillRequired)
		return "", &Error{Kind: Validation, Message: config.MsgFillRequired}
	}

	files := make([]attachment.File, len(f.draft.Images))
	for i, img := range f.draft.Images {
		files[i] = img.File
	}

	id, err := f.deps.Persister.CreateRecord(ctx, title, content, files)
	if err != nil {
		formLogger.Error().Err(err).Str("title", title).Msg("Failed to create record")
		f.deps.Notifier.Error(config.MsgNewsCreateFailed)
		return "", &Error{Kind: SubmissionFailure, Message: config.MsgNewsCreateFailed, Err: err}
	}

	formLogger.Info().Str("id", string(id)).Int("images", len(files)).Msg("Record created")
	f.deps.Notifier.Success(config.MsgNewsCreated)

	f.releaseAll()
	f.draft = Draft{}
	if f.ready {
		// SetData skips the change listeners, so f.mu is not re-entered.
		if err := f.deps.Surface.SetData(f.handle, ""); err != nil {
			formLogger.Warn().Err(err).Str("handle", string(f.handle)).Msg("Failed to clear editor surface")
		}
	}
	return id, nil
}

func (f *Form) releaseAll() {
	for _, img := range f.draft.Images {
		f.deps.Previews.Release(img.Preview)
	}
	f.draft.Images = nil
}

func (f *Form) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Title
}

func (f *Form) Content() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Content
}

func (f *Form) Images() []attachment.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]attachment.File, len(f.draft.Images))
	for i, img := range f.draft.Images {
		files[i] = img.File
	}
	return files
}

func (f *Form) Previews() []attachment.Preview {
	f.mu.Lock()
	defer f.mu.Unlock()
	previews := make([]attachment.Preview, len(f.draft.Images))
	for i, img := range f.draft.Images {
		previews[i] = img.Preview
	}
	return previews
}

// Pending returns a snapshot of the selected images with their previews.
func (f *Form) Pending() []PendingImage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PendingImage, len(f.draft.Images))
	for i, img := range f.draft.Images {
		out[i] = *img
	}
	return out
}

func (f *Form) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *Form) Mounted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounted
}

// Handle returns the surface instance of a ready form.
func (f *Form) Handle() (editor.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle, f.ready
}

// EditorConfig is the empty config until the layout is ready.
func (f *Form) EditorConfig() editor.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// Submitting reports whether a submission is in flight.
func (f *Form) Submitting() bool {
	return f.submitting.Load()
}
