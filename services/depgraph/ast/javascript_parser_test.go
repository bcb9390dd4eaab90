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

const jsTestSource = `import React from 'react';
import * as path from 'node:path';
import { render, hydrate as wake } from 'react-dom';
const fs = require('fs');
const { readFile, writeFile } = require('fs/promises');

export const MAX_RETRIES = 5;

/**
 * Formats a display name.
 */
export function formatName(user) {
  return user.name.trim();
}

const toSlug = (text) => text.toLowerCase();

export class Session {
  start() {
    return import('./lazy.js');
  }
  #reset() {}
}

export { formatName as format } from './format.js';
`

func TestJavaScriptParser_Parse_ESImports(t *testing.T) {
	result := mustParse(t, NewJavaScriptParser(), jsTestSource, "/web/src/session.js")

	react := findImport(result, "react")
	if react == nil {
		t.Fatal("expected import of 'react'")
	}
	if react.Name != "React" {
		t.Errorf("default import binds 'React', got %q", react.Name)
	}
	if react.IsRelative {
		t.Error("'react' is a bare specifier, not relative")
	}

	pathImport := findImport(result, "node:path")
	if pathImport == nil {
		t.Fatal("expected import of 'node:path'")
	}
	if !pathImport.IsWildcard || pathImport.Name != "path" {
		t.Errorf("namespace import should bind 'path' as wildcard, got %+v", pathImport)
	}

	reactDOM := findImport(result, "react-dom")
	if reactDOM == nil {
		t.Fatal("expected import of 'react-dom'")
	}
	if len(reactDOM.Names) != 2 || reactDOM.Names[0] != "render" || reactDOM.Names[1] != "wake" {
		t.Errorf("named imports bind [render wake], got %v", reactDOM.Names)
	}
}

func TestJavaScriptParser_Parse_RequireImports(t *testing.T) {
	result := mustParse(t, NewJavaScriptParser(), jsTestSource, "/web/src/session.js")

	fsImport := findImport(result, "fs")
	if fsImport == nil {
		t.Fatal("expected require of 'fs'")
	}
	if fsImport.Kind != ImportRequire || fsImport.Name != "fs" {
		t.Errorf("unexpected require import: %+v", fsImport)
	}

	promises := findImport(result, "fs/promises")
	if promises == nil {
		t.Fatal("expected require of 'fs/promises'")
	}
	if len(promises.Names) != 2 || promises.Names[0] != "readFile" || promises.Names[1] != "writeFile" {
		t.Errorf("destructured require binds [readFile writeFile], got %v", promises.Names)
	}

	// The require declarators themselves must not surface as variables.
	if sym := findSymbol(result, "fs"); sym != nil {
		t.Errorf("require binding leaked into symbols: %+v", sym)
	}
}

func TestJavaScriptParser_Parse_DynamicAndReExports(t *testing.T) {
	result := mustParse(t, NewJavaScriptParser(), jsTestSource, "/web/src/session.js")

	lazy := findImport(result, "./lazy.js")
	if lazy == nil {
		t.Fatal("expected dynamic import of './lazy.js'")
	}
	if lazy.Kind != ImportDynamic || !lazy.IsRelative {
		t.Errorf("unexpected dynamic import: %+v", lazy)
	}

	reExport := findImport(result, "./format.js")
	if reExport == nil {
		t.Error("expected re-export source './format.js' to be recorded as an import")
	}
}

func TestJavaScriptParser_Parse_Symbols(t *testing.T) {
	result := mustParse(t, NewJavaScriptParser(), jsTestSource, "/web/src/session.js")

	format := findSymbol(result, "formatName")
	if format == nil {
		t.Fatal("expected function 'formatName'")
	}
	if format.Kind != SymbolKindFunction || !format.Exported {
		t.Errorf("expected exported function, got %+v", format)
	}
	if !strings.Contains(format.DocComment, "Formats a display name") {
		t.Errorf("expected JSDoc comment, got %q", format.DocComment)
	}

	slug := findSymbol(result, "toSlug")
	if slug == nil {
		t.Fatal("expected arrow function 'toSlug'")
	}
	if slug.Kind != SymbolKindFunction {
		t.Errorf("arrow assignment is a function, got %v", slug.Kind)
	}
	if slug.Exported {
		t.Error("toSlug is not exported")
	}

	maxRetries := findSymbol(result, "MAX_RETRIES")
	if maxRetries == nil || maxRetries.Kind != SymbolKindConstant {
		t.Errorf("expected exported constant, got %+v", maxRetries)
	}
	if maxRetries != nil && !maxRetries.Exported {
		t.Error("MAX_RETRIES should be exported")
	}

	session := findSymbol(result, "Session")
	if session == nil || session.Kind != SymbolKindClass {
		t.Errorf("expected class 'Session', got %+v", session)
	}

	start := findSymbol(result, "start")
	if start == nil {
		t.Fatal("expected method 'start'")
	}
	if start.Kind != SymbolKindMethod || start.Receiver != "Session" {
		t.Errorf("expected Session method, got %+v", start)
	}
}

func TestJavaScriptParser_Parse_ComponentDetection(t *testing.T) {
	source := "export const UserCard = (props) => <div>{props.name}</div>;\n"
	result := mustParse(t, NewJavaScriptParser(), source, "/web/src/UserCard.jsx")

	card := findSymbol(result, "UserCard")
	if card == nil {
		t.Fatal("expected component 'UserCard'")
	}
	if card.Kind != SymbolKindComponent {
		t.Errorf("capitalized arrow function in .jsx is a component, got %v", card.Kind)
	}
}
