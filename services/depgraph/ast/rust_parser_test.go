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

const rustTestSource = `use std::collections::HashMap;
use std::io::Read as IoRead;
use serde::{Serialize, Deserialize};
use crate::store::Backend;
use super::util::*;

pub const MAX_ENTRIES: usize = 4096;

/// A keyed record store.
pub struct Store {
    entries: HashMap<String, String>,
}

pub enum Mode {
    Read,
    Write,
}

pub trait Flushable {
    fn flush(&mut self) -> std::io::Result<()>;
}

impl Store {
    /// Creates an empty store.
    pub fn new() -> Self {
        Store { entries: HashMap::new() }
    }

    fn evict(&mut self) {}
}

pub fn open(path: &str) -> Store {
    Store::new()
}

type Alias = HashMap<String, String>;
`

func TestRustParser_Parse_UseDeclarations(t *testing.T) {
	result := mustParse(t, NewRustParser(), rustTestSource, "/crate/src/store.rs")

	hashMap := findImport(result, "std::collections::HashMap")
	if hashMap == nil {
		t.Fatal("expected use of std::collections::HashMap")
	}
	if hashMap.Name != "HashMap" {
		t.Errorf("expected bound name 'HashMap', got %q", hashMap.Name)
	}
	if hashMap.IsRelative {
		t.Error("std paths are not crate-relative")
	}

	aliased := findImport(result, "std::io::Read")
	if aliased == nil {
		t.Fatal("expected aliased use of std::io::Read")
	}
	if aliased.Alias != "IoRead" || aliased.Name != "IoRead" {
		t.Errorf("expected alias binding 'IoRead', got %+v", aliased)
	}

	serde := findImport(result, "serde")
	if serde == nil {
		t.Fatal("expected grouped use of serde")
	}
	if len(serde.Names) != 2 || serde.Names[0] != "Serialize" || serde.Names[1] != "Deserialize" {
		t.Errorf("expected [Serialize Deserialize], got %v", serde.Names)
	}

	backend := findImport(result, "crate::store::Backend")
	if backend == nil || !backend.IsRelative {
		t.Errorf("crate:: paths are relative to the workspace, got %+v", backend)
	}

	wildcard := findImport(result, "super::util")
	if wildcard == nil {
		t.Fatal("expected wildcard use of super::util")
	}
	if !wildcard.IsWildcard || !wildcard.IsRelative {
		t.Errorf("expected relative wildcard, got %+v", wildcard)
	}
}

func TestRustParser_Parse_TypesAndConstants(t *testing.T) {
	result := mustParse(t, NewRustParser(), rustTestSource, "/crate/src/store.rs")

	store := findSymbol(result, "Store")
	if store == nil {
		t.Fatal("expected struct 'Store'")
	}
	if store.Kind != SymbolKindStruct || !store.Exported {
		t.Errorf("expected public struct, got %+v", store)
	}
	if !strings.Contains(store.DocComment, "keyed record store") {
		t.Errorf("expected /// doc comment, got %q", store.DocComment)
	}

	mode := findSymbol(result, "Mode")
	if mode == nil || mode.Kind != SymbolKindEnum {
		t.Errorf("expected enum 'Mode', got %+v", mode)
	}

	flushable := findSymbol(result, "Flushable")
	if flushable == nil || flushable.Kind != SymbolKindTrait {
		t.Errorf("expected trait 'Flushable', got %+v", flushable)
	}

	maxEntries := findSymbol(result, "MAX_ENTRIES")
	if maxEntries == nil || maxEntries.Kind != SymbolKindConstant {
		t.Errorf("expected constant 'MAX_ENTRIES', got %+v", maxEntries)
	}

	alias := findSymbol(result, "Alias")
	if alias == nil {
		t.Fatal("expected type alias 'Alias'")
	}
	if alias.Kind != SymbolKindTypeAlias {
		t.Errorf("expected type alias kind, got %v", alias.Kind)
	}
	if alias.Exported {
		t.Error("Alias has no pub modifier")
	}
}

func TestRustParser_Parse_FunctionsAndMethods(t *testing.T) {
	result := mustParse(t, NewRustParser(), rustTestSource, "/crate/src/store.rs")

	newFn := findSymbol(result, "new")
	if newFn == nil {
		t.Fatal("expected method 'new'")
	}
	if newFn.Kind != SymbolKindMethod || newFn.Receiver != "Store" {
		t.Errorf("expected Store method, got %+v", newFn)
	}
	if !newFn.Exported {
		t.Error("Store::new is pub")
	}
	if !strings.Contains(newFn.DocComment, "Creates an empty store") {
		t.Errorf("expected method doc comment, got %q", newFn.DocComment)
	}

	evict := findSymbol(result, "evict")
	if evict == nil {
		t.Fatal("expected method 'evict'")
	}
	if evict.Exported {
		t.Error("evict is private")
	}

	openFn := findSymbol(result, "open")
	if openFn == nil {
		t.Fatal("expected function 'open'")
	}
	if openFn.Kind != SymbolKindFunction || openFn.Receiver != "" {
		t.Errorf("expected free function, got %+v", openFn)
	}

	flush := findSymbol(result, "flush")
	if flush == nil {
		t.Fatal("expected trait method 'flush'")
	}
	if flush.Receiver != "Flushable" {
		t.Errorf("trait methods carry the trait as receiver, got %q", flush.Receiver)
	}
}

func TestRustParser_Parse_Modules(t *testing.T) {
	source := `pub mod cache {
    pub fn invalidate(key: &str) {}
}
`
	result := mustParse(t, NewRustParser(), source, "/crate/src/lib.rs")

	cache := findSymbol(result, "cache")
	if cache == nil || cache.Kind != SymbolKindModule {
		t.Errorf("expected module 'cache', got %+v", cache)
	}

	invalidate := findSymbol(result, "invalidate")
	if invalidate == nil {
		t.Fatal("expected mod member 'invalidate'")
	}
	if invalidate.Kind != SymbolKindFunction {
		t.Errorf("mod functions are free functions, got %v", invalidate.Kind)
	}
}
