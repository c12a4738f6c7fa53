// Package config holds the YAML configuration, its defaults and the shared
// constants of the news desk.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Server      ServerConfig      `yaml:"server"`
	Theme       ThemeConfig       `yaml:"theme"`
	Content     ContentConfig     `yaml:"content"`
	Editor      EditorConfig      `yaml:"editor"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Storage     StorageConfig     `yaml:"storage"`
	Drafts      DraftsConfig      `yaml:"drafts"`
	Features    FeaturesConfig    `yaml:"features"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Newsdesk"`
	Description string `yaml:"description" default:"News administration"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            string        `yaml:"port" default:"12600"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" default:"33554432"`
}

type ThemeConfig struct {
	Default     string `yaml:"default" default:"dark-theme"`
	SyntaxDark  string `yaml:"syntax_dark" default:"gruvbox"`
	SyntaxLight string `yaml:"syntax_light" default:"catppuccin-latte"`
}

type ContentConfig struct {
	RecordsPerPage int `yaml:"records_per_page" default:"50"`
}

// EditorConfig configures the rich-text surface handed to the browser.
type EditorConfig struct {
	// Surface is either "html" (the browser widget posts serialised HTML)
	// or "markdown" (the browser posts markdown that is rendered here).
	Surface      string        `yaml:"surface" default:"html"`
	LicenseKey   string        `yaml:"license_key" default:"GPL"`
	Placeholder  string        `yaml:"placeholder" default:"Type or paste your content here!"`
	AutosaveWait time.Duration `yaml:"autosave_wait" default:"2s"`
}

type AttachmentsConfig struct {
	Enforce      bool     `yaml:"enforce" default:"true"`
	AllowedTypes []string `yaml:"allowed_types" default:"image/svg+xml,image/png,image/jpeg,image/gif"`
	MaxWidth     int      `yaml:"max_width" default:"800"`
	MaxHeight    int      `yaml:"max_height" default:"400"`
	MaxBytes     int64    `yaml:"max_bytes" default:"5242880"`
}

type StorageConfig struct {
	Database string     `yaml:"database" default:"./newsdesk.db"`
	Blobs    BlobConfig `yaml:"blobs"`
}

type BlobConfig struct {
	Driver   string `yaml:"driver" default:"fs"`
	Dir      string `yaml:"dir" default:"./media"`
	Bucket   string `yaml:"bucket" default:""`
	Endpoint string `yaml:"endpoint" default:""`
	Region   string `yaml:"region" default:"auto"`
}

type DraftsConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" default:"2h"`
	SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
}

type FeaturesConfig struct {
	Authentication AuthConfig `yaml:"authentication"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
}

var AppConfig *Config

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func LoadConfig(path string) error {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	AppConfig = config
	return nil
}

// Validate reports every setting that cannot be served.
func (c *Config) Validate() error {
	var errs []error

	switch c.Editor.Surface {
	case SurfaceHTML, SurfaceMarkdown:
	default:
		errs = append(errs, fmt.Errorf("unknown editor surface %q", c.Editor.Surface))
	}

	switch c.Storage.Blobs.Driver {
	case BlobDriverFS:
		if c.Storage.Blobs.Dir == "" {
			errs = append(errs, errors.New("storage.blobs.dir is required for the fs driver"))
		}
	case BlobDriverS3:
		if c.Storage.Blobs.Bucket == "" {
			errs = append(errs, errors.New("storage.blobs.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Storage.Blobs.Driver))
	}

	if c.Features.Authentication.Enabled {
		switch c.Features.Authentication.Type {
		case AuthEd25519, AuthClerk:
		default:
			errs = append(errs, fmt.Errorf("unknown authentication type %q", c.Features.Authentication.Type))
		}
	}

	if c.Content.RecordsPerPage <= 0 {
		errs = append(errs, errors.New("content.records_per_page must be positive"))
	}

	return errors.Join(errs...)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if d, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(d))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
