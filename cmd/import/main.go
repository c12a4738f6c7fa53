// Command import loads a directory of markdown articles into the news
// database. Each article may carry an mmark %%% front matter block with its
// title and date; images in a sibling directory named after the article
// are attached in name order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/debemdeboas/newsdesk/internal/attachment"
	"github.com/debemdeboas/newsdesk/internal/blob"
	"github.com/debemdeboas/newsdesk/internal/config"
	"github.com/debemdeboas/newsdesk/internal/db"
	"github.com/debemdeboas/newsdesk/internal/editor"
	"github.com/debemdeboas/newsdesk/internal/logger"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/debemdeboas/newsdesk/internal/repository"
	"github.com/debemdeboas/newsdesk/internal/util"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type importer struct {
	repo        repository.NewsRepository
	policy      attachment.Policy
	owner       model.UserID
	syntaxTheme string
	log         zerolog.Logger
}

func main() {
	path := flag.String("path", "", "Directory containing .md files")
	ownerID := flag.String("owner-id", "", "Owner user ID for the records")
	configPath := flag.String("config", "config.yaml", "Configuration file")
	flag.Parse()

	_ = godotenv.Load()
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	l := logger.New(config.AppConfig.Logging.Level)
	db.SetLogger(l)
	blob.SetLogger(l)
	repository.SetLogger(l)

	if *path == "" || *ownerID == "" {
		l.Fatal().Msg("Both --path and --owner-id flags are required")
	}

	ctx := context.Background()
	cfg := config.AppConfig

	database := db.NewSQLite(cfg.Storage.Database)
	if err := database.InitDB(ctx); err != nil {
		l.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	blobs, err := blob.FromConfig(ctx, cfg.Storage.Blobs)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open blob store")
	}

	imp := &importer{
		repo:        repository.NewDBNewsRepository(database, blobs),
		policy:      attachment.PolicyFromConfig(cfg.Attachments),
		owner:       model.UserID(*ownerID),
		syntaxTheme: cfg.Theme.SyntaxLight,
		log:         l,
	}

	imported, err := imp.importDir(ctx, *path)
	if err != nil {
		l.Fatal().Err(err).Msg("Import failed")
	}
	l.Info().Int("records", imported).Msg("Import finished")
}

func (imp *importer) importDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		id, err := imp.importFile(ctx, dir, entry)
		if err != nil {
			imp.log.Error().Err(err).Str("file", entry.Name()).Msg("Failed to import article")
			continue
		}
		imp.log.Info().Str("file", entry.Name()).Str("id", string(id)).Msg("Article imported")
		imported++
	}
	return imported, nil
}

func (imp *importer) importFile(ctx context.Context, dir string, entry os.DirEntry) (model.RecordID, error) {
	raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
	if err != nil {
		return "", err
	}
	info, err := entry.Info()
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(entry.Name(), ".md")
	title := base
	created := info.ModTime().UTC()
	body := raw

	fm, err := util.GetFrontMatter(raw)
	switch {
	case err == nil:
		if fm.Title != "" {
			title = fm.Title
		}
		if !fm.Date.IsZero() {
			created = fm.Date.UTC()
		}
		body = fm.Body
	case errors.Is(err, util.ErrNoFrontMatter):
	default:
		return "", err
	}

	html := editor.ContentPolicy().SanitizeBytes(editor.RenderMarkdown(body, imp.syntaxTheme))
	if editor.IsBlank(string(html)) {
		return "", fmt.Errorf("%s has no content", entry.Name())
	}

	files, err := imp.loadImages(filepath.Join(dir, base))
	if err != nil {
		return "", err
	}

	return imp.repo.Create(ctx, repository.NewRecord{
		Owner:   imp.owner,
		Title:   title,
		Content: string(html),
		Files:   files,
		Created: created,
	})
}

// loadImages reads the article's image directory, if there is one. Files
// the policy rejects are skipped.
func (imp *importer) loadImages(dir string) ([]attachment.File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []attachment.File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		f := attachment.NewFile(entry.Name(), data)
		if err := imp.policy.Check(f); err != nil {
			imp.log.Warn().Err(err).Msg("Skipping image")
			continue
		}
		files = append(files, f)
	}
	return files, nil
}
