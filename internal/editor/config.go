// Package editor provides the rich-text surfaces the news form edits its
// body through, and the declarative configuration of the browser widget.
package editor

import (
	"encoding/json"

	"github.com/debemdeboas/newsdesk/internal/config"
)

// Config is the capability set handed to the browser widget. The zero
// Config means "not ready" and serialises to {}.
type Config struct {
	Toolbar     Toolbar        `json:"toolbar"`
	Plugins     []string       `json:"plugins"`
	Heading     HeadingConfig  `json:"heading"`
	LicenseKey  string         `json:"licenseKey"`
	Placeholder string         `json:"placeholder"`
	Table       TableConfig    `json:"table"`
	Autosave    AutosaveConfig `json:"autosave"`
	Surface     string         `json:"surface"`
}

type Toolbar struct {
	Items []string `json:"items"`
}

type HeadingConfig struct {
	Options []HeadingOption `json:"options"`
}

type HeadingOption struct {
	Model string `json:"model"`
	View  string `json:"view"`
	Title string `json:"title"`
	Class string `json:"class"`
}

type TableConfig struct {
	ContentToolbar []string `json:"contentToolbar"`
}

type AutosaveConfig struct {
	// WaitingTime is in milliseconds, as the widget expects.
	WaitingTime int64 `json:"waitingTime"`
}

const ToolbarSeparator = "|"

var defaultPlugins = []string{
	"Autosave",
	"BlockQuote",
	"Bold",
	"Essentials",
	"Heading",
	"Indent",
	"IndentBlock",
	"Italic",
	"Paragraph",
	"SpecialCharacters",
	"Table",
	"TableCaption",
	"TableCellProperties",
	"TableColumnResize",
	"TableProperties",
	"TableToolbar",
	"TextPartLanguage",
	"Underline",
}

var defaultToolbar = []string{
	"heading",
	ToolbarSeparator,
	"bold",
	"italic",
	"underline",
	ToolbarSeparator,
	"specialCharacters",
	"insertTable",
	"blockQuote",
	ToolbarSeparator,
	"outdent",
	"indent",
}

var defaultTableToolbar = []string{
	"tableColumn",
	"tableRow",
	"mergeTableCells",
	"tableProperties",
	"tableCellProperties",
}

func headingOptions() []HeadingOption {
	options := []HeadingOption{{
		Model: "paragraph",
		View:  "p",
		Title: "Paragraph",
		Class: "ck-heading_paragraph",
	}}
	for level := 1; level <= 6; level++ {
		n := string(rune('0' + level))
		options = append(options, HeadingOption{
			Model: "heading" + n,
			View:  "h" + n,
			Title: "Heading " + n,
			Class: "ck-heading_heading" + n,
		})
	}
	return options
}

// DefaultConfig builds the fixed capability set. Slices are fresh copies.
func DefaultConfig(cfg config.EditorConfig) Config {
	return Config{
		Toolbar:     Toolbar{Items: append([]string(nil), defaultToolbar...)},
		Plugins:     append([]string(nil), defaultPlugins...),
		Heading:     HeadingConfig{Options: headingOptions()},
		LicenseKey:  cfg.LicenseKey,
		Placeholder: cfg.Placeholder,
		Table:       TableConfig{ContentToolbar: append([]string(nil), defaultTableToolbar...)},
		Autosave:    AutosaveConfig{WaitingTime: cfg.AutosaveWait.Milliseconds()},
		Surface:     cfg.Surface,
	}
}

func (c Config) IsZero() bool {
	return len(c.Plugins) == 0
}

// JSON serialises the config for the page script.
func (c Config) JSON() ([]byte, error) {
	if c.IsZero() {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}
