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
	"strings"
	"testing"
)

const goTestSource = `package server

import (
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"
)

// MaxRetries bounds reconnect attempts.
const MaxRetries = 3

var defaultTimeout = 30

// Server handles inbound requests.
type Server struct {
	addr string
}

// Handler is anything that can serve a request.
type Handler interface {
	Serve() error
}

// NewServer builds a Server for addr.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Start begins listening. It blocks until the listener fails.
func (s *Server) Start() error {
	fmt.Println(s.addr)
	return http.ListenAndServe(s.addr, chi.NewRouter())
}

func helper() {}
`

func TestGoParser_Parse_Symbols(t *testing.T) {
	result := mustParse(t, NewGoParser(), goTestSource, "/src/server/server.go")

	if result.Language != "go" {
		t.Fatalf("expected language go, got %q", result.Language)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no parse errors, got %v", result.Errors)
	}

	pkg := findSymbol(result, "server")
	if pkg == nil || pkg.Kind != SymbolKindModule {
		t.Errorf("expected package symbol 'server', got %+v", pkg)
	}

	srv := findSymbol(result, "Server")
	if srv == nil {
		t.Fatal("expected struct symbol 'Server'")
	}
	if srv.Kind != SymbolKindStruct {
		t.Errorf("expected Server to be a struct, got %v", srv.Kind)
	}
	if !srv.Exported {
		t.Error("Server should be exported")
	}
	if !strings.Contains(srv.DocComment, "handles inbound requests") {
		t.Errorf("expected Server doc comment, got %q", srv.DocComment)
	}

	handler := findSymbol(result, "Handler")
	if handler == nil || handler.Kind != SymbolKindInterface {
		t.Errorf("expected interface symbol 'Handler', got %+v", handler)
	}

	maxRetries := findSymbol(result, "MaxRetries")
	if maxRetries == nil || maxRetries.Kind != SymbolKindConstant {
		t.Errorf("expected constant 'MaxRetries', got %+v", maxRetries)
	}

	timeout := findSymbol(result, "defaultTimeout")
	if timeout == nil || timeout.Kind != SymbolKindVariable {
		t.Errorf("expected variable 'defaultTimeout', got %+v", timeout)
	}
	if timeout != nil && timeout.Exported {
		t.Error("defaultTimeout should not be exported")
	}
}

func TestGoParser_Parse_Functions(t *testing.T) {
	result := mustParse(t, NewGoParser(), goTestSource, "/src/server/server.go")

	newServer := findSymbol(result, "NewServer")
	if newServer == nil {
		t.Fatal("expected function 'NewServer'")
	}
	if newServer.Kind != SymbolKindFunction {
		t.Errorf("expected function kind, got %v", newServer.Kind)
	}
	if newServer.Receiver != "" {
		t.Errorf("free function should have no receiver, got %q", newServer.Receiver)
	}
	if !strings.Contains(newServer.Signature, "func NewServer(addr string)") {
		t.Errorf("unexpected signature: %q", newServer.Signature)
	}

	start := findSymbol(result, "Start")
	if start == nil {
		t.Fatal("expected method 'Start'")
	}
	if start.Kind != SymbolKindMethod {
		t.Errorf("expected method kind, got %v", start.Kind)
	}
	if start.Receiver != "Server" {
		t.Errorf("expected receiver 'Server', got %q", start.Receiver)
	}
	if !strings.Contains(start.DocComment, "begins listening") {
		t.Errorf("expected Start doc comment, got %q", start.DocComment)
	}

	helper := findSymbol(result, "helper")
	if helper == nil {
		t.Fatal("expected function 'helper'")
	}
	if helper.Exported {
		t.Error("helper should not be exported")
	}
	if helper.DocComment != "" {
		t.Errorf("helper has no doc comment, got %q", helper.DocComment)
	}
}

func TestGoParser_Parse_Imports(t *testing.T) {
	result := mustParse(t, NewGoParser(), goTestSource, "/src/server/server.go")

	if len(result.Imports) != 3 {
		t.Fatalf("expected 3 imports, got %d: %+v", len(result.Imports), result.Imports)
	}

	fmtImport := findImport(result, "fmt")
	if fmtImport == nil {
		t.Fatal("expected import 'fmt'")
	}
	if fmtImport.Name != "fmt" || fmtImport.Alias != "" {
		t.Errorf("unexpected fmt import: %+v", fmtImport)
	}

	httpImport := findImport(result, "net/http")
	if httpImport == nil {
		t.Fatal("expected import 'net/http'")
	}
	if httpImport.Name != "http" {
		t.Errorf("expected bound name 'http', got %q", httpImport.Name)
	}

	chiImport := findImport(result, "github.com/go-chi/chi/v5")
	if chiImport == nil {
		t.Fatal("expected chi import")
	}
	if chiImport.Alias != "chi" || chiImport.Name != "chi" {
		t.Errorf("expected alias binding 'chi', got %+v", chiImport)
	}
}

func TestGoParser_Parse_SymbolIDsAreStable(t *testing.T) {
	first := mustParse(t, NewGoParser(), goTestSource, "/src/server/server.go")
	second := mustParse(t, NewGoParser(), goTestSource, "/src/server/server.go")

	if len(first.Symbols) != len(second.Symbols) {
		t.Fatalf("symbol counts differ across parses: %d vs %d",
			len(first.Symbols), len(second.Symbols))
	}
	for i := range first.Symbols {
		if first.Symbols[i].ID != second.Symbols[i].ID {
			t.Errorf("symbol %d id changed: %q vs %q",
				i, first.Symbols[i].ID, second.Symbols[i].ID)
		}
	}
	if first.Hash != second.Hash {
		t.Errorf("content hash changed across parses")
	}
}

func TestGoParser_Parse_SyntaxErrorIsPartial(t *testing.T) {
	source := "package broken\n\nfunc oops( {\n"
	result := mustParse(t, NewGoParser(), source, "/src/broken.go")

	if len(result.Errors) == 0 {
		t.Error("expected at least one parse error for broken source")
	}
	// The package clause is still extractable.
	if findSymbol(result, "broken") == nil {
		t.Error("expected partial extraction to find the package symbol")
	}
}

func TestGoParser_Parse_EmptyFile(t *testing.T) {
	result := mustParse(t, NewGoParser(), "", "/src/empty.go")
	if len(result.Symbols) != 0 || len(result.Imports) != 0 {
		t.Errorf("expected empty result, got %d symbols %d imports",
			len(result.Symbols), len(result.Imports))
	}
}
