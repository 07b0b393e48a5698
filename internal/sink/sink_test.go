package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		url      string
		expected string
	}{
		{"https://example.com/", "https___example.com_.html"},
		{"https://example.com/a?b=c&d=e", "https___example.com_a_b_c_d_e.html"},
		{"http://example.com:8080/x#y", "http___example.com_8080_x_y.html"},
		{"a", "a.html"},
	}

	for _, tc := range testCases {
		if got := FileName(tc.url); got != tc.expected {
			t.Errorf("FileName(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}

func TestFileSink_Persist(t *testing.T) {
	t.Parallel()

	t.Run("writes the body and creates the directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "out", "nested")
		s := NewFileSink(dir)

		if err := s.Persist("https://example.com/", "<html></html>"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "https___example.com_.html"))
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != "<html></html>" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("overwrites an existing file", func(t *testing.T) {
		t.Parallel()

		s := NewFileSink(t.TempDir())
		if err := s.Persist("a", "first"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Persist("a", "second"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(s.Dir(), "a.html"))
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != "second" {
			t.Errorf("expected %q, got %q", "second", data)
		}
	})

	t.Run("empty identifier", func(t *testing.T) {
		t.Parallel()

		if err := NewFileSink(t.TempDir()).Persist("", "x"); !errors.Is(err, ErrEmptyIdentifier) {
			t.Errorf("expected ErrEmptyIdentifier, got %v", err)
		}
	})

	t.Run("output path is a file", func(t *testing.T) {
		t.Parallel()

		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, nil, 0600); err != nil {
			t.Fatalf("setup: %v", err)
		}

		if err := NewFileSink(file).Persist("a", "x"); err == nil {
			t.Error("expected an error when the output directory is a file")
		}
	})
}
