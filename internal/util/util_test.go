package util

import (
	"testing"
	"time"
)

func TestGetFrontMatter(t *testing.T) {
	testCases := []struct {
		name          string
		markdown      []byte
		expectError   bool
		expectedTitle string
		expectedDate  time.Time
		expectedBody  string
	}{
		{
			name: "Valid Front Matter",
			markdown: []byte(`%%%
title = "Hello World"
date = 2025-01-01 00:00:00Z
%%%
# Content`),
			expectedTitle: "Hello World",
			expectedDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			expectedBody:  "# Content",
		},
		{
			name: "No Front Matter",
			markdown: []byte(`# Just Content
No front matter here.`),
			expectError: true,
		},
		{
			name:        "Empty File",
			markdown:    []byte(""),
			expectError: true,
		},
		{
			name: "Content Before Front Matter",
			markdown: []byte(`
# This should be ignored
%%%
title = "Hello World"
%%%
# Content`),
			expectError: true,
		},
		{
			name: "Leading Whitespace",
			markdown: []byte(`


%%%

title = "Hello World"

%%%

Body`),
			expectedTitle: "Hello World",
			expectedBody:  "Body",
		},
		{
			name: "Malformed Front Matter",
			markdown: []byte(`%%%
title = "Incomplete
# Content`),
			expectError: true,
		},
		{
			name: "Empty Block",
			markdown: []byte(`%%%
%%%
Body`),
			expectedBody: "Body",
		},
		{
			name:        "Only Delimiters",
			markdown:    []byte("%%% %%%"),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := GetFrontMatter(tc.markdown)

			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				}
				if info != nil {
					t.Errorf("Expected nil info when error occurs, but got %+v", info)
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, but got: %v", err)
			}
			if info.Title != tc.expectedTitle {
				t.Errorf("Expected title '%s', but got '%s'", tc.expectedTitle, info.Title)
			}
			if !info.Date.Equal(tc.expectedDate) {
				t.Errorf("Expected date '%v', but got '%v'", tc.expectedDate, info.Date)
			}
			if string(info.Body) != tc.expectedBody {
				t.Errorf("Expected body %q, but got %q", tc.expectedBody, info.Body)
			}
			if info.Language != "en" {
				t.Errorf("Expected default language 'en', got %q", info.Language)
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash([]byte("abc")) != ContentHashString("abc") {
		t.Error("Expected byte and string hashes to match")
	}
	if len(ContentHashString("abc")) != 64 {
		t.Error("Expected hex sha256")
	}
	if ContentHashString("a") == ContentHashString("b") {
		t.Error("Expected different content to hash differently")
	}
}

func TestSlugify(t *testing.T) {
	testCases := map[string]string{
		"Launch":                   "launch",
		"  Hello,   World! ":       "hello-world",
		"Q3 results: 2025 edition": "q3-results-2025-edition",
		"Ünïcode Straße":           "ünïcode-straße",
		"!!!":                      "untitled",
		"":                         "untitled",
	}
	for in, want := range testCases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
