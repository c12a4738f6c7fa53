package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/config"
	"github.com/debemdeboas/newsdesk/internal/editor"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSurface struct {
	mu        sync.Mutex
	inits     int
	destroyed []editor.Handle
	listeners map[editor.Handle]func(string)
	data      map[editor.Handle]string
}

func (s *fakeSurface) Init(cfg editor.Config) (editor.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	if s.listeners == nil {
		s.listeners = make(map[editor.Handle]func(string))
	}
	return editor.Handle("h" + string(rune('0'+s.inits))), nil
}

func (s *fakeSurface) OnChange(h editor.Handle, fn func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[h] = fn
	return nil
}

func (s *fakeSurface) GetData(h editor.Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[h], nil
}

func (s *fakeSurface) SetData(h editor.Handle, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[editor.Handle]string)
	}
	s.data[h] = data
	return nil
}

func (s *fakeSurface) Destroy(h editor.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, h)
	delete(s.listeners, h)
}

func (s *fakeSurface) initCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

type call struct {
	Title   string
	Content string
	Files   []attachment.File
}

type fakePersister struct {
	mu    sync.Mutex
	calls []call
	err   error

	started chan struct{}
	proceed chan struct{}
}

func (p *fakePersister) CreateRecord(ctx context.Context, title, content string, files []attachment.File) (model.RecordID, error) {
	if p.started != nil {
		p.started <- struct{}{}
		<-p.proceed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{Title: title, Content: content, Files: files})
	if p.err != nil {
		return "", p.err
	}
	return model.RecordID("rec-1"), nil
}

// countingPreviews records how often each token is released.
type countingPreviews struct {
	*attachment.Previews

	mu       sync.Mutex
	released map[string]int
}

func newCountingPreviews() *countingPreviews {
	return &countingPreviews{
		Previews: attachment.NewPreviews("/news/previews/"),
		released: make(map[string]int),
	}
}

func (c *countingPreviews) Release(p attachment.Preview) bool {
	c.mu.Lock()
	c.released[p.Token]++
	c.mu.Unlock()
	return c.Previews.Release(p)
}

type harness struct {
	form      *Form
	surface   *fakeSurface
	notifier  *recordingNotifier
	persister *fakePersister
	previews  *countingPreviews
}

func newHarness(t *testing.T, policy attachment.Policy) *harness {
	t.Helper()
	h := &harness{
		surface:   &fakeSurface{},
		notifier:  &recordingNotifier{},
		persister: &fakePersister{},
		previews:  newCountingPreviews(),
	}
	h.form = New(Deps{
		Surface:      h.surface,
		Notifier:     h.notifier,
		Persister:    h.persister,
		Previews:     h.previews,
		Policy:       policy,
		EditorConfig: editor.DefaultConfig(config.Default().Editor),
	})
	h.form.Mount()
	return h
}

func file(name string) attachment.File {
	return attachment.File{
		Name:        name,
		ContentType: "image/png",
		Size:        4,
		Width:       100,
		Height:      50,
		Data:        []byte(name),
	}
}

func names(files []attachment.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"both empty", "", ""},
		{"empty title", "", "<p>Hi</p>"},
		{"empty content", "Launch", ""},
		{"whitespace title", "   ", "<p>Hi</p>"},
		{"empty markup", "Launch", "<p>&nbsp;</p><p></p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, attachment.Policy{})
			h.form.SetTitle(tt.title)
			h.form.SetContent(tt.content)
			if err := h.form.AddImages(file("a.png")); err != nil {
				t.Fatalf("AddImages: %v", err)
			}

			id, err := h.form.Submit(context.Background())
			if !IsValidation(err) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if id != "" {
				t.Errorf("Expected no id, got %q", id)
			}
			if got := Message(err, ""); got != "Please fill in all required fields" {
				t.Errorf("Unexpected message %q", got)
			}

			if h.form.Title() != tt.title || h.form.Content() != tt.content {
				t.Errorf("Draft changed: title=%q content=%q", h.form.Title(), h.form.Content())
			}
			if diff := cmp.Diff([]string{"a.png"}, names(h.form.Images())); diff != "" {
				t.Errorf("Images changed (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"Please fill in all required fields"}, h.notifier.errors); diff != "" {
				t.Errorf("Error notifications (-want +got):\n%s", diff)
			}
			if len(h.persister.calls) != 0 {
				t.Errorf("Persister called %d times", len(h.persister.calls))
			}
		})
	}
}

func TestSubmitSuccess(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"paragraph", "Launch", "<p>Hi</p>"},
		{"image only body", "Gallery", `<figure class="image"><img src="x.png"></figure>`},
		{"table only body", "Scores", "<table><tr><td></td></tr></table>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, attachment.Policy{})
			h.form.SetTitle(tt.title)
			h.form.SetContent(tt.content)
			if err := h.form.AddImages(file("fileA.png")); err != nil {
				t.Fatalf("AddImages: %v", err)
			}

			id, err := h.form.Submit(context.Background())
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if id != "rec-1" {
				t.Errorf("Expected id rec-1, got %q", id)
			}

			if diff := cmp.Diff([]string{"News created successfully"}, h.notifier.successes); diff != "" {
				t.Errorf("Success notifications (-want +got):\n%s", diff)
			}
			if h.form.Title() != "" || h.form.Content() != "" || len(h.form.Images()) != 0 {
				t.Errorf("Expected reset draft, got (%q, %q, %v)", h.form.Title(), h.form.Content(), names(h.form.Images()))
			}
			if h.previews.Outstanding() != 0 {
				t.Errorf("Expected every preview released, %d outstanding", h.previews.Outstanding())
			}

			want := []call{{Title: tt.title, Content: tt.content, Files: []attachment.File{file("fileA.png")}}}
			if diff := cmp.Diff(want, h.persister.calls); diff != "" {
				t.Errorf("Persisted calls (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmitTrimsTitle(t *testing.T) {
	h := newHarness(t, attachment.Policy{})
	h.form.SetTitle("  Launch \n")
	h.form.SetContent(" <p>Hi</p> ")

	if _, err := h.form.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := h.persister.calls[0]; got.Title != "Launch" || got.Content != "<p>Hi</p>" {
		t.Errorf("Expected trimmed values, got %+v", got)
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, attachment.Policy{})
	h.persister.err = errors.New("disk full")

	h.form.SetTitle("Launch")
	h.form.SetContent("<p>Hi</p>")
	if err := h.form.AddImages(file("a.png"), file("b.png")); err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	_, err := h.form.Submit(context.Background())
	if !IsSubmissionFailure(err) {
		t.Fatalf("Expected submission failure, got %v", err)
	}
	if !errors.Is(err, h.persister.err) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if diff := cmp.Diff([]string{"Failed to create news, please try again"}, h.notifier.errors); diff != "" {
		t.Errorf("Error notifications (-want +got):\n%s", diff)
	}
	if h.form.Title() != "Launch" || h.form.Content() != "<p>Hi</p>" {
		t.Errorf("Draft was cleared after failure")
	}
	if h.previews.Outstanding() != 2 {
		t.Errorf("Expected previews to stay live, %d outstanding", h.previews.Outstanding())
	}

	// Retry with the same draft.
	h.persister.err = nil
	if _, err := h.form.Submit(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if len(h.persister.calls) != 2 {
		t.Fatalf("Expected two persister calls, got %d", len(h.persister.calls))
	}
	if diff := cmp.Diff(h.persister.calls[0], h.persister.calls[1]); diff != "" {
		t.Errorf("Retry submitted a different draft (-first +retry):\n%s", diff)
	}
}

func TestAddImagesCumulative(t *testing.T) {
	h := newHarness(t, attachment.Policy{})

	if err := h.form.AddImages(file("a.png")); err != nil {
		t.Fatal(err)
	}
	if err := h.form.AddImages(file("b.png"), file("a.png")); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a.png", "b.png", "a.png"}, names(h.form.Images())); diff != "" {
		t.Errorf("Images (-want +got):\n%s", diff)
	}

	previews := h.form.Previews()
	if len(previews) != 3 || h.previews.Outstanding() != 3 {
		t.Fatalf("Expected one preview per image, got %d (%d outstanding)", len(previews), h.previews.Outstanding())
	}
	if previews[0].Token == previews[2].Token {
		t.Error("Duplicate files must get distinct previews")
	}
}

func TestAddImagesPolicy(t *testing.T) {
	h := newHarness(t, attachment.Policy{
		AllowedTypes: []string{"image/png"},
		MaxWidth:     800,
		MaxHeight:    400,
	})

	wide := file("wide.png")
	wide.Width = 1200
	svg := file("logo.svg")
	svg.ContentType = "image/svg+xml"

	err := h.form.AddImages(file("a.png"), wide, svg, file("b.png"))
	if !IsInvalidAttachment(err) {
		t.Fatalf("Expected invalid attachment error, got %v", err)
	}

	var violation *attachment.Violation
	if !errors.As(err, &violation) || violation.Name != "wide.png" {
		t.Errorf("Expected first violation for wide.png, got %v", violation)
	}

	if diff := cmp.Diff([]string{"a.png", "b.png"}, names(h.form.Images())); diff != "" {
		t.Errorf("Valid files should survive (-want +got):\n%s", diff)
	}
	if len(h.notifier.errors) != 2 {
		t.Errorf("Expected one notification per rejected file, got %v", h.notifier.errors)
	}
	if h.previews.Outstanding() != 2 {
		t.Errorf("Rejected files must not hold previews, %d outstanding", h.previews.Outstanding())
	}
}

func TestRemoveImage(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		want    []string
		removed bool
	}{
		{"middle", 1, []string{"a", "c"}, true},
		{"first", 0, []string{"b", "c"}, true},
		{"last", 2, []string{"a", "b"}, true},
		{"negative", -1, []string{"a", "b", "c"}, false},
		{"past end", 3, []string{"a", "b", "c"}, false},
		{"far past end", 42, []string{"a", "b", "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, attachment.Policy{})
			if err := h.form.AddImages(file("a"), file("b"), file("c")); err != nil {
				t.Fatal(err)
			}
			before := h.form.Previews()

			if got := h.form.RemoveImage(tt.index); got != tt.removed {
				t.Errorf("RemoveImage(%d) = %v, want %v", tt.index, got, tt.removed)
			}
			if diff := cmp.Diff(tt.want, names(h.form.Images())); diff != "" {
				t.Errorf("Images (-want +got):\n%s", diff)
			}

			wantOutstanding := 3
			if tt.removed {
				wantOutstanding = 2
				if n := h.previews.released[before[tt.index].Token]; n != 1 {
					t.Errorf("Removed preview released %d times", n)
				}
			}
			if h.previews.Outstanding() != wantOutstanding {
				t.Errorf("Expected %d outstanding previews, got %d", wantOutstanding, h.previews.Outstanding())
			}
		})
	}
}

func TestPreviewsReleasedExactlyOnce(t *testing.T) {
	h := newHarness(t, attachment.Policy{})

	for i := 0; i < 50; i++ {
		if err := h.form.AddImages(file("a"), file("b")); err != nil {
			t.Fatal(err)
		}
		h.form.RemoveImage(0)
	}
	h.form.SetTitle("Launch")
	h.form.SetContent("<p>Hi</p>")
	if _, err := h.form.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := h.form.AddImages(file("c"), file("d")); err != nil {
		t.Fatal(err)
	}
	h.form.Unmount()
	h.form.Unmount()

	if h.previews.Outstanding() != 0 {
		t.Errorf("Expected no outstanding previews, got %d", h.previews.Outstanding())
	}
	if len(h.previews.released) != 102 {
		t.Errorf("Expected 102 distinct releases, got %d", len(h.previews.released))
	}
	for token, n := range h.previews.released {
		if n != 1 {
			t.Errorf("Preview %s released %d times", token, n)
		}
	}
}

func TestSurfaceReadiness(t *testing.T) {
	h := newHarness(t, attachment.Policy{})

	if h.form.Ready() || h.surface.initCount() != 0 {
		t.Fatal("Surface must not be built before the layout is ready")
	}
	if !h.form.EditorConfig().IsZero() {
		t.Error("Expected empty editor config before readiness")
	}

	cfg, err := h.form.LayoutReady(context.Background())
	if err != nil {
		t.Fatalf("LayoutReady: %v", err)
	}
	if cfg.IsZero() || cfg.LicenseKey != "GPL" {
		t.Errorf("Unexpected editor config %+v", cfg)
	}
	if _, err := h.form.LayoutReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.surface.initCount() != 1 {
		t.Errorf("Expected exactly one surface init, got %d", h.surface.initCount())
	}
	if diff := cmp.Diff(cfg, h.form.EditorConfig()); diff != "" {
		t.Errorf("EditorConfig (-ready +accessor):\n%s", diff)
	}

	handle, ok := h.form.Handle()
	if !ok {
		t.Fatal("Expected a handle once ready")
	}
	h.surface.listeners[handle]("<p>typed</p>")
	if h.form.Content() != "<p>typed</p>" {
		t.Errorf("Change callback did not update content: %q", h.form.Content())
	}

	h.form.Unmount()
	if h.form.Ready() || !h.form.EditorConfig().IsZero() {
		t.Error("Expected readiness to drop on unmount")
	}
	if diff := cmp.Diff([]editor.Handle{handle}, h.surface.destroyed); diff != "" {
		t.Errorf("Destroyed handles (-want +got):\n%s", diff)
	}

	h.form.Mount()
	if _, err := h.form.LayoutReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.surface.initCount() != 2 {
		t.Errorf("Expected a fresh surface after remount, got %d inits", h.surface.initCount())
	}
	h.form.Unmount()
}

func TestLayoutReadyRequiresMount(t *testing.T) {
	h := newHarness(t, attachment.Policy{})
	h.form.Unmount()

	if _, err := h.form.LayoutReady(context.Background()); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Expected ErrNotMounted, got %v", err)
	}
	if h.surface.initCount() != 0 {
		t.Errorf("Surface built for an unmounted form")
	}
}

func TestUnmountedFormIgnoresEdits(t *testing.T) {
	h := newHarness(t, attachment.Policy{})
	h.form.SetTitle("Launch")
	h.form.Unmount()

	err := h.form.AddImages(file("a.png"), file("b.png"))
	if !errors.Is(err, ErrNotMounted) {
		t.Errorf("Expected ErrNotMounted, got %v", err)
	}
	if n := len(h.form.Images()); n != 0 {
		t.Errorf("Expected no images on an unmounted form, got %d", n)
	}
	if h.previews.Outstanding() != 0 {
		t.Errorf("Expected no outstanding previews, got %d", h.previews.Outstanding())
	}

	h.form.SetTitle("Late")
	h.form.SetContent("<p>Late</p>")
	if h.form.Title() != "" || h.form.Content() != "" {
		t.Errorf("Expected an empty draft after unmount, got %q / %q", h.form.Title(), h.form.Content())
	}
}

func TestSubmitClearsSurface(t *testing.T) {
	surface := editor.NewHTMLSurface()
	f := New(Deps{
		Surface:      surface,
		Notifier:     &recordingNotifier{},
		Persister:    &fakePersister{},
		Previews:     attachment.NewPreviews("/news/previews/"),
		EditorConfig: editor.DefaultConfig(config.Default().Editor),
	})
	f.Mount()
	defer f.Unmount()
	if _, err := f.LayoutReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	h, _ := f.Handle()
	if err := surface.Apply(h, "<p>Body</p>"); err != nil {
		t.Fatal(err)
	}
	f.SetTitle("Launch")
	if _, err := f.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := surface.GetData(h)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("Expected the surface to be cleared after submit, got %q", got)
	}
	if f.Content() != "" {
		t.Errorf("Expected empty content after submit, got %q", f.Content())
	}
}

func TestHTMLSurfaceDrivesContent(t *testing.T) {
	surface := editor.NewHTMLSurface()
	f := New(Deps{
		Surface:      surface,
		Notifier:     &recordingNotifier{},
		Persister:    &fakePersister{},
		Previews:     attachment.NewPreviews("/news/previews/"),
		EditorConfig: editor.DefaultConfig(config.Default().Editor),
	})
	f.Mount()
	if _, err := f.LayoutReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	h, _ := f.Handle()
	if err := surface.Apply(h, `<p onclick="x()">Hi<script>alert(1)</script></p>`); err != nil {
		t.Fatal(err)
	}
	if f.Content() != "<p>Hi</p>" {
		t.Errorf("Expected sanitised content, got %q", f.Content())
	}

	f.Unmount()
	if surface.Live() != 0 {
		t.Errorf("Expected the surface instance to be destroyed, %d live", surface.Live())
	}
}

func TestConcurrentSubmitRejected(t *testing.T) {
	h := newHarness(t, attachment.Policy{})
	h.persister.started = make(chan struct{})
	h.persister.proceed = make(chan struct{})

	h.form.SetTitle("Launch")
	h.form.SetContent("<p>Hi</p>")

	type result struct {
		id  model.RecordID
		err error
	}
	first := make(chan result, 1)
	go func() {
		id, err := h.form.Submit(context.Background())
		first <- result{id, err}
	}()
	<-h.persister.started

	if !h.form.Submitting() {
		t.Error("Expected Submitting while the persister runs")
	}
	if _, err := h.form.Submit(context.Background()); !errors.Is(err, ErrSubmissionInProgress) {
		t.Errorf("Expected ErrSubmissionInProgress, got %v", err)
	}

	// An edit during the submission waits for it and lands on the reset draft.
	edited := make(chan struct{})
	go func() {
		h.form.SetTitle("Next")
		close(edited)
	}()

	close(h.persister.proceed)
	res := <-first
	<-edited

	if res.err != nil || res.id != "rec-1" {
		t.Fatalf("First submission: id=%q err=%v", res.id, res.err)
	}
	if len(h.persister.calls) != 1 {
		t.Errorf("Expected exactly one persisted record, got %d", len(h.persister.calls))
	}
	if h.form.Title() != "Next" || h.form.Content() != "" {
		t.Errorf("Expected queued edit on the reset draft, got (%q, %q)", h.form.Title(), h.form.Content())
	}
	if h.form.Submitting() {
		t.Error("Submitting should be false once the submission returned")
	}
	if diff := cmp.Diff([]string{"A submission is already in progress"}, h.notifier.errors); diff != "" {
		t.Errorf("Error notifications (-want +got):\n%s", diff)
	}
}

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name       string
		err        error
		validation bool
		attachment bool
		submission bool
	}{
		{"validation", &Error{Kind: Validation, Message: "m"}, true, false, false},
		{"attachment", &Error{Kind: InvalidAttachment, Message: "m"}, false, true, false},
		{"submission", &Error{Kind: SubmissionFailure, Message: "m", Err: cause}, false, false, true},
		{"joined", errors.Join(cause, &Error{Kind: InvalidAttachment}), false, true, false},
		{"plain", cause, false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation = %v", got)
			}
			if got := IsInvalidAttachment(tt.err); got != tt.attachment {
				t.Errorf("IsInvalidAttachment = %v", got)
			}
			if got := IsSubmissionFailure(tt.err); got != tt.submission {
				t.Errorf("IsSubmissionFailure = %v", got)
			}
		})
	}

	if got := Message(cause, "fallback"); got != "fallback" {
		t.Errorf("Message(plain) = %q", got)
	}
}
