// Package news serves the record list and the record creation form over
// htmx.
package news

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/auth"
	"github.com/debemdeboas/newsdesk/internal/blob"
	"github.com/debemdeboas/newsdesk/internal/config"
	"github.com/debemdeboas/newsdesk/internal/editor"
	"github.com/debemdeboas/newsdesk/internal/form"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/debemdeboas/newsdesk/internal/notify"
	"github.com/debemdeboas/newsdesk/internal/repository"
	"github.com/debemdeboas/newsdesk/internal/repository/drafts"
	"github.com/debemdeboas/newsdesk/internal/routes"
	"github.com/rs/zerolog"
)

var newsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	newsLogger = l
}

const (
	TemplateNameImages = "images"

	formFieldTitle   = "title"
	formFieldContent = "content"
	formFieldImages  = "images"
)

type Options struct {
	Repo     repository.NewsRepository
	Drafts   *drafts.MemoryRepository
	Surface  *editor.Surface
	Previews *attachment.Previews
	Hub      *notify.Hub

	Policy         attachment.Policy
	EditorConfig   editor.Config
	RecordsPerPage int
	MaxUploadBytes int64

	Templates fs.FS
}

type Handler struct {
	repo     repository.NewsRepository
	drafts   *drafts.MemoryRepository
	surface  *editor.Surface
	previews *attachment.Previews
	hub      *notify.Hub

	policy         attachment.Policy
	editorConfig   editor.Config
	perPage        int
	maxUploadBytes int64

	listTmpl   *template.Template
	addTmpl    *template.Template
	recordTmpl *template.Template
}

func parseTemplates(files fs.FS, page string) (*template.Template, error) {
	tmpl, err := template.ParseFS(
		files,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+page,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", page, err)
	}
	return tmpl, nil
}

func NewHandler(opts Options) (*Handler, error) {
	listTmpl, err := parseTemplates(opts.Templates, config.TemplateNewsList)
	if err != nil {
		return nil, err
	}
	addTmpl, err := parseTemplates(opts.Templates, config.TemplateNewsAdd)
	if err != nil {
		return nil, err
	}
	recordTmpl, err := parseTemplates(opts.Templates, config.TemplateNewsRecord)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		repo:     opts.Repo,
		drafts:   opts.Drafts,
		surface:  opts.Surface,
		previews: opts.Previews,
		hub:      opts.Hub,

		policy:         opts.Policy,
		editorConfig:   opts.EditorConfig,
		perPage:        opts.RecordsPerPage,
		maxUploadBytes: opts.MaxUploadBytes,

		listTmpl:   listTmpl,
		addTmpl:    addTmpl,
		recordTmpl: recordTmpl,
	}
	if h.perPage <= 0 {
		h.perPage = config.Default().Content.RecordsPerPage
	}

	h.drafts.SetDeleteNotifier(func(id drafts.ID) {
		h.hub.CloseDraft(string(id))
	})
	return h, nil
}

// Register mounts the news routes. requireUser guards every route that
// touches a draft.
func (h *Handler) Register(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	guard := func(fn http.HandlerFunc) http.Handler {
		return requireUser(fn)
	}

	mux.HandleFunc("GET "+routes.NewsList, h.ServeList)
	mux.HandleFunc("GET "+routes.NewsRecord, h.ServeRecord)
	mux.HandleFunc("GET "+routes.NewsMedia, h.ServeMedia)

	mux.Handle("GET "+routes.NewsAdd, guard(h.ServeAdd))
	mux.Handle("POST "+routes.NewsAddReady, guard(h.withDraft(h.serveReady)))
	mux.Handle("POST "+routes.NewsAddTitle, guard(h.withDraft(h.serveTitle)))
	mux.Handle("POST "+routes.NewsAddContent, guard(h.withDraft(h.serveContent)))
	mux.Handle("POST "+routes.NewsAddImages, guard(h.withDraft(h.serveAddImages)))
	mux.Handle("DELETE "+routes.NewsAddImage, guard(h.withDraft(h.serveRemoveImage)))
	mux.Handle("POST "+routes.NewsAddSubmit, guard(h.withDraft(h.serveSubmit)))
	mux.Handle("POST "+routes.NewsAddUnmount, guard(http.HandlerFunc(h.ServeUnmount)))
	mux.Handle("GET "+routes.NewsPreview, guard(h.ServePreview))
	mux.Handle("GET "+routes.NewsEvents, guard(h.ServeEvents))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, name string, data any) {
	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, config.ErrRenderPage, http.StatusInternalServerError)
	}
}

// fail answers with status and a toast carrying msg.
func fail(w http.ResponseWriter, status int, msg string) {
	var toasts notify.Toasts
	toasts.Error(msg)
	toasts.Write(w)
	http.Error(w, msg, status)
}

func draftCookie(id drafts.ID, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     config.CookieDraftID,
		Value:    string(id),
		Path:     routes.NewsList,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// discardDraft tears down the draft named by the request cookie, if any.
func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(config.CookieDraftID)
	if err != nil || cookie.Value == "" {
		return
	}
	if h.drafts.Delete(drafts.ID(cookie.Value)) {
		zerolog.Ctx(r.Context()).Debug().Str("draft_id", cookie.Value).Msg("Draft discarded")
	}
	http.SetCookie(w, draftCookie("", -1))
}

type listPage struct {
	*model.PageData
	Records  []model.Record
	Total    int
	Page     int
	PrevPage int
	NextPage int
	AddURL   string
}

// ServeList renders the records newest first. Leaving the form for the
// list discards the open draft.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	h.discardDraft(w, r)

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	total, err := h.repo.CountRecords(r.Context())
	if err != nil {
		l.Error().Err(err).Msg("Failed to count records")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	records, err := h.repo.ListRecords(r.Context(), h.perPage, (page-1)*h.perPage)
	if err != nil {
		l.Error().Err(err).Msg("Failed to list records")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	data := listPage{
		PageData: model.NewPageData(r),
		Records:  records,
		Total:    total,
		Page:     page,
		AddURL:   routes.NewsAdd,
	}
	if page > 1 {
		data.PrevPage = page - 1
	}
	if page*h.perPage < total {
		data.NextPage = page + 1
	}

	h.render(w, r, h.listTmpl, config.TemplateNameLayout, data)
}

type recordPage struct {
	*model.PageData
	Record *model.Record
}

// ServeRecord renders one record. The ETag covers the stored body and the
// theme.
func (h *Handler) ServeRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.GetRecord(r.Context(), model.RecordID(r.PathValue("id")))
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, config.ErrRecordNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to load record")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	data := recordPage{PageData: model.NewPageData(r), Record: rec}
	etag := strconv.Quote(rec.ContentHash + "-" + data.Theme)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set(config.HETag, etag)

	h.render(w, r, h.recordTmpl, config.TemplateNameLayout, data)
}

// newForm builds the form of a draft owned by owner.
func (h *Handler) newForm(owner model.UserID) func(drafts.ID) *form.Form {
	return func(id drafts.ID) *form.Form {
		return form.New(form.Deps{
			Surface: h.surface,
			Notifier: notify.Multi{
				notify.Log{Logger: newsLogger.With().Str("draft_id", string(id)).Logger()},
				h.hub.For(string(id)),
			},
			Persister:    repository.OwnedPersister{Repo: h.repo, Owner: owner},
			Previews:     h.previews,
			Policy:       h.policy,
			EditorConfig: h.editorConfig,
		})
	}
}

type imageView struct {
	Index int
	Name  string
	URL   string
}

func imageViews(f *form.Form) []imageView {
	pending := f.Pending()
	views := make([]imageView, len(pending))
	for i, img := range pending {
		views[i] = imageView{Index: i, Name: img.File.Name, URL: img.Preview.URL}
	}
	return views
}

type addPage struct {
	*model.PageData
	DraftID      string
	EventsURL    string
	Accept       string
	Images       []imageView
	SurfaceKind  string
	AutosaveWait int64
}

// ServeAdd mounts a fresh form. A draft left open by a previous visit is
// discarded first.
func (h *Handler) ServeAdd(w http.ResponseWriter, r *http.Request) {
	h.discardDraft(w, r)

	owner, _ := auth.UserIDFromContext(r.Context())
	d := h.drafts.Create(owner, h.newForm(owner))
	http.SetCookie(w, draftCookie(d.ID, 0))

	editorPage := true
	data := addPage{
		PageData:     model.NewPageData(r),
		DraftID:      string(d.ID),
		EventsURL:    routes.NewsEvents + "?draft=" + string(d.ID),
		Accept:       acceptAttr(h.policy),
		Images:       imageViews(d.Form),
		SurfaceKind:  h.surface.Kind(),
		AutosaveWait: h.editorConfig.Autosave.WaitingTime,
	}
	data.IsEditorPage = &editorPage

	h.render(w, r, h.addTmpl, config.TemplateNameLayout, data)
}

func acceptAttr(p attachment.Policy) string {
	if len(p.AllowedTypes) == 0 {
		return "image/*"
	}
	return strings.Join(p.AllowedTypes, ",")
}

type draftHandler func(w http.ResponseWriter, r *http.Request, d *drafts.Draft)

// withDraft resolves the draft cookie to a draft owned by the caller.
func (h *Handler) withDraft(next draftHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(config.CookieDraftID)
		if err != nil || cookie.Value == "" {
			fail(w, http.StatusNotFound, config.ErrDraftNotFound)
			return
		}

		d, err := h.drafts.Get(drafts.ID(cookie.Value))
		if err != nil {
			fail(w, http.StatusNotFound, config.ErrDraftNotFound)
			return
		}

		owner, _ := auth.UserIDFromContext(r.Context())
		if d.Owner != owner {
			zerolog.Ctx(r.Context()).Warn().Str("draft_id", cookie.Value).Str("user_id", string(owner)).Msg("Draft owned by another user")
			fail(w, http.StatusNotFound, config.ErrDraftNotFound)
			return
		}

		next(w, r, d)
	}
}

func (h *Handler) serveReady(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	cfg, err := d.Form.LayoutReady(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to initialise editor surface")
		status := http.StatusInternalServerError
		if errors.Is(err, form.ErrNotMounted) {
			status = http.StatusNotFound
		}
		fail(w, status, config.ErrEditorNotReady)
		return
	}

	body, err := cfg.JSON()
	if err != nil {
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.Write(body)
}

func (h *Handler) serveTitle(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	d.Form.SetTitle(r.FormValue(formFieldTitle))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveContent(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	handle, ready := d.Form.Handle()
	if !ready {
		fail(w, http.StatusConflict, config.ErrEditorNotReady)
		return
	}

	if err := h.surface.Apply(handle, r.FormValue(formFieldContent)); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to apply editor change")
		fail(w, http.StatusConflict, config.ErrEditorNotReady)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renderImages(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	h.render(w, r, h.addTmpl, TemplateNameImages, imageViews(d.Form))
}

// serveAddImages appends the uploaded files. Rejected files are reported
// through the draft's notifier and the valid ones are kept.
func (h *Handler) serveAddImages(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	l := zerolog.Ctx(r.Context())

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		l.Warn().Err(err).Msg("Failed to parse upload")
		fail(w, http.StatusBadRequest, config.ErrInvalidUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []attachment.File
	for _, fh := range r.MultipartForm.File[formFieldImages] {
		f, err := attachment.FromMultipart(fh, h.policy.MaxBytes)
		if err != nil {
			l.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to read upload")
			fail(w, http.StatusBadRequest, config.ErrInvalidUpload)
			return
		}
		files = append(files, f)
	}

	if err := d.Form.AddImages(files...); err != nil {
		if errors.Is(err, form.ErrNotMounted) {
			fail(w, http.StatusNotFound, config.ErrDraftNotFound)
			return
		}
		l.Info().Err(err).Msg("Attachments rejected")
	}
	h.renderImages(w, r, d)
}

// serveRemoveImage removes one image. An index past the end is ignored.
func (h *Handler) serveRemoveImage(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		fail(w, http.StatusBadRequest, config.ErrInvalidIndex)
		return
	}
	d.Form.RemoveImage(i)
	h.renderImages(w, r, d)
}

func (h *Handler) serveSubmit(w http.ResponseWriter, r *http.Request, d *drafts.Draft) {
	// The title field may still be waiting on its debounce.
	if err := r.ParseForm(); err == nil {
		if v, ok := r.PostForm[formFieldTitle]; ok {
			d.Form.SetTitle(v[0])
		}
	}

	id, err := d.Form.Submit(r.Context())

	// With no event stream open the outcome toast rides on the response.
	var toasts notify.Toasts
	offline := h.hub.Clients(string(d.ID)) == 0

	var status int
	var msg string
	switch {
	case err == nil:
		if offline {
			toasts.Success(config.MsgNewsCreated)
		}
		toasts.Trigger("newsCreated", map[string]string{"id": string(id)})
		toasts.Write(w)
		w.Header().Set(config.HCType, config.CTypeJSON)
		json.NewEncoder(w).Encode(map[string]string{"id": string(id)})
		return
	case errors.Is(err, form.ErrSubmissionInProgress):
		status, msg = http.StatusConflict, config.MsgSubmissionPending
	case errors.Is(err, form.ErrNotMounted):
		fail(w, http.StatusNotFound, config.ErrDraftNotFound)
		return
	case form.IsValidation(err):
		status, msg = http.StatusUnprocessableEntity, form.Message(err, config.MsgFillRequired)
	case form.IsSubmissionFailure(err):
		status, msg = http.StatusServiceUnavailable, form.Message(err, config.MsgNewsCreateFailed)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Unexpected submission error")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	if offline {
		toasts.Error(msg)
		toasts.Write(w)
	}
	http.Error(w, msg, status)
}

// ServeUnmount is called by the page when it goes away.
func (h *Handler) ServeUnmount(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(config.CookieDraftID)
	if err == nil && cookie.Value != "" {
		if d, err := h.drafts.Get(drafts.ID(cookie.Value)); err == nil {
			owner, _ := auth.UserIDFromContext(r.Context())
			if d.Owner == owner {
				h.drafts.Delete(d.ID)
			}
		}
	}
	http.SetCookie(w, draftCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	f, ok := h.previews.Get(r.PathValue("token"))
	if !ok {
		http.Error(w, config.ErrPreviewNotFound, http.StatusNotFound)
		return
	}
	w.Header().Set(config.HCType, f.ContentType)
	w.Header().Set(config.HCacheControl, "no-store")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.Write(f.Data)
}

func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	img, obj, err := h.repo.OpenImage(r.Context(), model.ImageID(r.PathValue("id")))
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, blob.ErrNotFound) {
		http.Error(w, config.ErrMediaNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to open media")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	etag := strconv.Quote(img.BlobKey)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set(config.HCType, obj.ContentType)
	w.Header().Set(config.HETag, etag)
	w.Header().Set(config.HCacheControl, "public, max-age=31536000, immutable")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.Write(obj.Data)
}

// ServeEvents streams the toasts of one draft.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	draftID := r.URL.Query().Get("draft")
	if draftID == "" {
		http.Error(w, config.ErrDraftRequired, http.StatusBadRequest)
		return
	}
	d, err := h.drafts.Get(drafts.ID(draftID))
	if err != nil {
		http.Error(w, config.ErrDraftNotFound, http.StatusNotFound)
		return
	}
	if owner, _ := auth.UserIDFromContext(r.Context()); d.Owner != owner {
		http.Error(w, config.ErrDraftNotFound, http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, config.ErrStreamingMissing, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := notify.NewClient(draftID)
	h.hub.Add(client)
	defer h.hub.Delete(client)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()
	l.Debug().Str("draft_id", draftID).Msg("Event stream connected")

	for {
		select {
		case e, ok := <-client.Msg:
			if !ok {
				fmt.Fprintf(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: toast\ndata: %s\n\n", e.JSON())
			flusher.Flush()
		case <-r.Context().Done():
			l.Debug().Str("draft_id", draftID).Msg("Event stream disconnected")
			return
		}
	}
}
