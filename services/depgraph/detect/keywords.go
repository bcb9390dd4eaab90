// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import "strings"

// keywordTables lists, per language tag, identifiers that look like calls
// in source text but must never become graph edges: control flow, builtins
// whose definitions live outside the workspace, and call-shaped operators.
var keywordTables = map[string]map[string]struct{}{
	"cfamily": keywordSet(
		"if", "else", "for", "while", "do", "switch", "case", "return",
		"break", "continue", "throw", "try", "catch", "finally", "new",
		"delete", "typeof", "instanceof", "void", "in", "of", "yield",
		"await", "async", "function", "class", "extends", "super", "this",
		"constructor", "import", "export", "default", "require",
		"const", "let", "var", "interface", "type", "enum", "namespace",
		"declare", "abstract", "implements", "static", "public", "private",
		"protected",
	),
	"python": keywordSet(
		"if", "elif", "else", "for", "while", "return", "break", "continue",
		"pass", "raise", "try", "except", "finally", "with", "as", "def",
		"class", "lambda", "yield", "await", "async", "assert", "del",
		"global", "nonlocal", "import", "from", "and", "or", "not", "in",
		"is", "print", "len", "range", "type", "super", "isinstance",
		"str", "int", "float", "bool", "list", "dict", "set", "tuple",
	),
	"golang": keywordSet(
		"if", "else", "for", "switch", "case", "select", "return", "break",
		"continue", "goto", "fallthrough", "defer", "go", "func", "range",
		"map", "chan", "interface", "struct", "type", "var", "const",
		"package", "import", "make", "new", "len", "cap", "append", "copy",
		"delete", "close", "panic", "recover", "print", "println", "string",
		"int", "int32", "int64", "uint", "byte", "rune", "float64", "bool",
		"error", "any", "min", "max", "clear",
	),
	"rust": keywordSet(
		"if", "else", "for", "while", "loop", "match", "return", "break",
		"continue", "fn", "let", "mut", "impl", "trait", "struct", "enum",
		"mod", "use", "pub", "crate", "self", "super", "unsafe", "async",
		"await", "move", "dyn", "ref", "where", "as", "in",
		"static", "const", "type", "extern", "union", "macro_rules",
		"Some", "None", "Ok", "Err", "Box", "Vec", "String", "vec",
		"println", "print", "eprintln", "format", "panic", "assert",
		"assert_eq", "assert_ne", "todo", "unimplemented", "unreachable",
		"matches", "write", "writeln", "dbg",
	),
	"script": keywordSet(
		"if", "then", "else", "elif", "fi", "for", "do", "done", "while",
		"until", "case", "esac", "function", "return", "exit", "break",
		"continue", "echo", "printf", "read", "test", "set", "unset",
		"local", "export", "source", "eval", "exec", "shift", "trap", "cd",
	),
}

func keywordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// languageAliases folds parser language tags onto the resolver tags keying
// the tables above, so callers can pass either.
var languageAliases = map[string]string{
	"go":         "golang",
	"javascript": "cfamily",
	"typescript": "cfamily",
}

// IsKeyword reports whether name is excluded for the language tag. Unknown
// tags use the script table, matching the resolver fallback.
func IsKeyword(language, name string) bool {
	tag := strings.ToLower(language)
	if alias, ok := languageAliases[tag]; ok {
		tag = alias
	}
	table, ok := keywordTables[tag]
	if !ok {
		table = keywordTables["script"]
	}
	_, excluded := table[name]
	return excluded
}
