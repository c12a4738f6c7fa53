package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/auth"
	"github.com/debemdeboas/newsdesk/internal/blob"
	"github.com/debemdeboas/newsdesk/internal/cache"
	"github.com/debemdeboas/newsdesk/internal/config"
	"github.com/debemdeboas/newsdesk/internal/db"
	"github.com/debemdeboas/newsdesk/internal/editor"
	"github.com/debemdeboas/newsdesk/internal/form"
	"github.com/debemdeboas/newsdesk/internal/logger"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/debemdeboas/newsdesk/internal/news"
	"github.com/debemdeboas/newsdesk/internal/notify"
	"github.com/debemdeboas/newsdesk/internal/repository"
	"github.com/debemdeboas/newsdesk/internal/repository/drafts"
	"github.com/debemdeboas/newsdesk/internal/routes"
	"github.com/debemdeboas/newsdesk/internal/theme"
	"github.com/debemdeboas/newsdesk/internal/util"
)

//go:embed static/* templates/*
var content embed.FS

const configPath = "config.yaml"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(config.AppConfig.Logging.Level)
	setLoggers(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, l); err != nil {
		l.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	blob.SetLogger(l.With().Str("component", "blob").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	drafts.SetLogger(l.With().Str("component", "drafts").Logger())
	form.SetLogger(l.With().Str("component", "form").Logger())
	editor.SetLogger(l.With().Str("component", "editor").Logger())
	auth.SetLogger(l.With().Str("component", "auth").Logger())
	news.SetLogger(l.With().Str("component", "news").Logger())
}

func newSurface(cfg *config.Config) *editor.Surface {
	if cfg.Editor.Surface == config.SurfaceMarkdown {
		return editor.NewMarkdownSurface(theme.GetDefaultSyntaxTheme(cfg.Theme.Default))
	}
	return editor.NewHTMLSurface()
}

func newAuthProvider(mux *http.ServeMux, database db.DB) (auth.AuthProvider, error) {
	authCfg := config.AppConfig.Features.Authentication
	if !authCfg.Enabled {
		return auth.Anonymous{}, nil
	}

	switch authCfg.Type {
	case config.AuthClerk:
		p := auth.NewClerkAuthProvider(os.Getenv("CLERK_API"), database)
		mux.HandleFunc("POST "+routes.WebhookUser, p.HandleWebhookUser)
		return p, nil
	default:
		p, err := auth.NewEd25519AuthProvider(os.Getenv("ED25519_PUBKEY"), "Authorization", model.UserID("admin"))
		if err != nil {
			return nil, fmt.Errorf("ed25519 provider: %w", err)
		}
		if err := auth.RegisterEd25519AuthRoutes(mux, p, content); err != nil {
			return nil, err
		}
		return p, nil
	}
}

func run(ctx context.Context, l zerolog.Logger) error {
	cfg := config.AppConfig

	database := db.NewSQLite(cfg.Storage.Database)
	if err := database.InitDB(ctx); err != nil {
		return fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	blobs, err := blob.FromConfig(ctx, cfg.Storage.Blobs)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	static, err := fs.Sub(content, config.StaticLocalDir)
	if err != nil {
		return err
	}
	if err := hashStatic(static); err != nil {
		return err
	}

	mux := http.NewServeMux()

	provider, err := newAuthProvider(mux, database)
	if err != nil {
		return err
	}

	draftRepo := drafts.NewMemoryRepository(cfg.Drafts.IdleTTL)
	newsHandler, err := news.NewHandler(news.Options{
		Repo:           repository.NewDBNewsRepository(database, blobs),
		Drafts:         draftRepo,
		Surface:        newSurface(cfg),
		Previews:       attachment.NewPreviews(routes.PreviewPrefix),
		Hub:            notify.NewHub(),
		Policy:         attachment.PolicyFromConfig(cfg.Attachments),
		EditorConfig:   editor.DefaultConfig(cfg.Editor),
		RecordsPerPage: cfg.Content.RecordsPerPage,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Templates:      content,
	})
	if err != nil {
		return err
	}
	newsHandler.Register(mux, auth.RequireUser(provider))

	mux.HandleFunc("GET "+routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.Write([]byte("User-agent: *\nDisallow: /"))
	})
	mux.HandleFunc("POST "+routes.ThemeToggle, serveThemeToggle)
	mux.Handle("GET "+config.StaticURLPath, http.StripPrefix(config.StaticURLPath, http.FileServer(http.FS(static))))
	mux.HandleFunc("GET "+routes.RootPath+"{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, routes.NewsList, http.StatusFound)
	})

	var handler http.Handler = secureHeaders(mux)
	handler = provider.WithHeaderAuthorization()(handler)
	handler = cacheIt(handler)
	handler = logger.Middleware(l)(handler)

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		draftRepo.Run(gctx, cfg.Drafts.SweepInterval)
		return nil
	})
	g.Go(func() error {
		l.Info().Str("addr", srv.Addr).Str("surface", cfg.Editor.Surface).Msg("Listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		l.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// hashStatic records a content hash per static file for ETags.
func hashStatic(static fs.FS) error {
	return fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(static, path)
		if err != nil {
			return err
		}
		cache.SetStaticHash(config.StaticURLPath+path, util.ContentHash(data))
		return nil
	})
}

func serveThemeToggle(w http.ResponseWriter, r *http.Request) {
	newTheme := theme.Opposite(theme.GetThemeFromRequest(r))

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieTheme,
		Value:    newTheme,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	syntaxTheme := theme.GetDefaultSyntaxTheme(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil {
		syntaxTheme = cookie.Value
	}

	w.Header().Set(config.HHxTrigger, fmt.Sprintf(`{"themeChanged":{"value":%q,"syntaxTheme":%q}}`, newTheme, syntaxTheme))
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

func cacheIt(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h.ServeHTTP(w, r)
	})
}

func secureHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.RobotsPath {
			h.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")

		h.ServeHTTP(w, r)
	})
}
