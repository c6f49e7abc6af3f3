// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package differ

import (
	"regexp"
	"strings"
)

// Category is a semantic symbol category.
type Category string

const (
	// CategoryFunction is a plain function or arrow-function binding.
	CategoryFunction Category = "function"

	// CategoryComponent is a UI component (capitalized declaration).
	CategoryComponent Category = "component"

	// CategoryImport is a module import.
	CategoryImport Category = "import"

	// CategoryHook is a hook invocation (useXxx).
	CategoryHook Category = "hook"

	// CategoryState is a state variable (useState destructuring).
	CategoryState Category = "state"

	// CategoryProp is a component prop name.
	CategoryProp Category = "prop"
)

// AllCategories lists every category in deterministic order.
var AllCategories = []Category{
	CategoryImport,
	CategoryFunction,
	CategoryComponent,
	CategoryHook,
	CategoryState,
	CategoryProp,
}

// SymbolTable maps each category to its symbols and the declaration text
// each symbol was extracted from.
type SymbolTable map[Category]map[string]string

// Names returns the symbol names for a category.
func (t SymbolTable) Names(cat Category) []string {
	names := make([]string, 0, len(t[cat]))
	for name := range t[cat] {
		names = append(names, name)
	}
	return names
}

// SemanticExtractor extracts per-category symbol sets from source text.
//
// # Description
//
// Extraction is a best-effort classifier over generated code, not a
// parser. The interface exists so a real AST pass can replace the regex
// heuristics without touching diff, conflict, or plan logic.
type SemanticExtractor interface {
	// Extract returns the symbol table for the given source.
	Extract(source string) SymbolTable
}

// =============================================================================
// Regex Extractor
// =============================================================================

// Pattern heuristics for generated React/JS artifacts. These intentionally
// over-match rather than under-match: a spurious symbol costs a little
// score noise, a missed removal hides a breaking change.
var (
	importRe = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w${},*\s]+\s+from\s+)?['"]([^'"]+)['"]`)

	requireRe = regexp.MustCompile(`(?m)(?:^|=\s*)require\(\s*['"]([^'"]+)['"]\s*\)`)

	// Declaration patterns run through end of line so the stored decl
	// text covers same-line bodies and modification detection can fire.
	funcDeclRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s+([A-Za-z_$][\w$]*)[^\n]*`)

	arrowDeclRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?const\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?(?:\([^)]*\)|[\w$]+)\s*=>[^\n]*`)

	classDeclRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Z][\w$]*)[^\n]*`)

	hookCallRe = regexp.MustCompile(`\b(use[A-Z][\w$]*)\s*\(`)

	stateRe = regexp.MustCompile(`(?m)(?:const|let)\s*\[\s*([\w$]+)\s*,\s*set[A-Z][\w$]*\s*\]\s*=\s*useState`)

	propsRe = regexp.MustCompile(`(?m)(?:function|const)\s+[A-Z][\w$]*\s*=?\s*\(\s*\{\s*([^}]*)\}`)
)

// RegexExtractor is the default pattern-based extractor.
//
// Thread Safety: stateless, safe for concurrent use.
type RegexExtractor struct{}

// NewRegexExtractor creates the default extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract returns the symbol table for the given source.
//
// # Inputs
//
//   - source: Canonical snapshot text.
//
// # Outputs
//
//   - SymbolTable: Symbols per category. Never nil; categories with no
//     symbols map to empty sets.
func (e *RegexExtractor) Extract(source string) SymbolTable {
	table := make(SymbolTable, len(AllCategories))
	for _, cat := range AllCategories {
		table[cat] = make(map[string]string)
	}

	for _, m := range importRe.FindAllStringSubmatch(source, -1) {
		table[CategoryImport][m[1]] = strings.TrimSpace(m[0])
	}
	for _, m := range requireRe.FindAllStringSubmatch(source, -1) {
		table[CategoryImport][m[1]] = strings.TrimSpace(m[0])
	}

	for _, m := range funcDeclRe.FindAllStringSubmatch(source, -1) {
		e.classifyCallable(table, m[1], m[0])
	}
	for _, m := range arrowDeclRe.FindAllStringSubmatch(source, -1) {
		e.classifyCallable(table, m[1], m[0])
	}
	for _, m := range classDeclRe.FindAllStringSubmatch(source, -1) {
		table[CategoryComponent][m[1]] = strings.TrimSpace(m[0])
	}

	for _, m := range hookCallRe.FindAllStringSubmatch(source, -1) {
		table[CategoryHook][m[1]] = strings.TrimSpace(m[0])
	}

	for _, m := range stateRe.FindAllStringSubmatch(source, -1) {
		table[CategoryState][m[1]] = strings.TrimSpace(m[0])
	}

	for _, m := range propsRe.FindAllStringSubmatch(source, -1) {
		for _, raw := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(raw)
			// Strip defaults ("count = 0") and type annotations ("count: number").
			if i := strings.IndexAny(name, "=:"); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name != "" && name != "..." {
				table[CategoryProp][name] = strings.TrimSpace(m[0])
			}
		}
	}

	return table
}

// classifyCallable files a callable declaration as a component when the
// name is capitalized (JSX convention) and as a function otherwise.
func (e *RegexExtractor) classifyCallable(table SymbolTable, name, decl string) {
	decl = strings.TrimSpace(decl)
	if name[0] >= 'A' && name[0] <= 'Z' {
		table[CategoryComponent][name] = decl
		return
	}
	table[CategoryFunction][name] = decl
}

// impactFor returns the default impact grade for a category.
func impactFor(cat Category, removed bool) Impact {
	switch cat {
	case CategoryImport:
		return ImpactLow
	case CategoryState, CategoryHook, CategoryFunction:
		if removed && cat == CategoryFunction {
			return ImpactBreaking
		}
		return ImpactMedium
	case CategoryComponent, CategoryProp:
		if removed {
			return ImpactBreaking
		}
		return ImpactHigh
	default:
		return ImpactMedium
	}
}
