// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// findSymbol returns the first symbol with the given name, or nil.
func findSymbol(result *ParseResult, name string) *Symbol {
	for _, sym := range result.Symbols {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

// findImport returns the first import with the given path, or nil.
func findImport(result *ParseResult, path string) *Import {
	for i := range result.Imports {
		if result.Imports[i].Path == path {
			return &result.Imports[i]
		}
	}
	return nil
}

// mustParse parses source with the given parser and fails the test on error.
func mustParse(t *testing.T, p Parser, source, filePath string) *ParseResult {
	t.Helper()
	result, err := p.Parse(context.Background(), []byte(source), filePath)
	if err != nil {
		t.Fatalf("parse %s: %v", filePath, err)
	}
	if result == nil {
		t.Fatalf("parse %s: nil result", filePath)
	}
	return result
}

func TestDefaultRegistry_RegistersAllLanguages(t *testing.T) {
	reg := DefaultRegistry()

	want := []string{"go", "javascript", "python", "rust", "typescript"}
	got := reg.Languages()

	if len(got) != len(want) {
		t.Fatalf("expected %d languages, got %d: %v", len(want), len(got), got)
	}
	for i, lang := range want {
		if got[i] != lang {
			t.Errorf("languages[%d]: expected %q, got %q", i, lang, got[i])
		}
	}
}

func TestParserRegistry_GetForFile(t *testing.T) {
	reg := DefaultRegistry()

	cases := []struct {
		path string
		lang string
	}{
		{"main.go", "go"},
		{"app.py", "python"},
		{"index.js", "javascript"},
		{"widget.jsx", "javascript"},
		{"server.ts", "typescript"},
		{"view.tsx", "typescript"},
		{"lib.rs", "rust"},
	}

	for _, tc := range cases {
		p, err := reg.GetForFile(tc.path)
		if err != nil {
			t.Errorf("GetForFile(%q): unexpected error: %v", tc.path, err)
			continue
		}
		if p.Language() != tc.lang {
			t.Errorf("GetForFile(%q): expected %q, got %q", tc.path, tc.lang, p.Language())
		}
	}
}

func TestParserRegistry_UnsupportedExtension(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.GetForFile("styles.css")
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestParserRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewParserRegistry()

	if err := reg.Register(NewGoParser()); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := reg.Register(NewGoParser())
	if !errors.Is(err, ErrDuplicateParser) {
		t.Errorf("expected ErrDuplicateParser, got %v", err)
	}

	// Registry must be unchanged after the failed registration.
	if len(reg.Languages()) != 1 {
		t.Errorf("expected 1 language after duplicate, got %v", reg.Languages())
	}
}

func TestParserRegistry_ConcurrentLookups(t *testing.T) {
	reg := DefaultRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := reg.GetByLanguage("go"); err != nil {
					t.Errorf("GetByLanguage: %v", err)
					return
				}
				if _, err := reg.GetForFile("x.py"); err != nil {
					t.Errorf("GetForFile: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParsers_NilContext(t *testing.T) {
	parsers := []Parser{
		NewGoParser(),
		NewPythonParser(),
		NewJavaScriptParser(),
		NewTypeScriptParser(),
		NewRustParser(),
	}

	for _, p := range parsers {
		//nolint:staticcheck // passing nil context deliberately
		_, err := p.Parse(nil, []byte("x"), "x")
		if !errors.Is(err, ErrNilContext) {
			t.Errorf("%s: expected ErrNilContext, got %v", p.Language(), err)
		}
	}
}

func TestParsers_FileTooLarge(t *testing.T) {
	p := NewGoParser(WithGoMaxFileSize(8))
	_, err := p.Parse(context.Background(), []byte("package verylongname"), "big.go")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}
