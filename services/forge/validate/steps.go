// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
)

// BuiltinSteps returns the default validation pipeline: syntax balance
// and semantic safety are required, dependency completeness warns only
// (the heuristic extractor over-reports on generated code).
func BuiltinSteps() []Step {
	return []Step{
		{
			ID:        "syntax-balance",
			Name:      "Syntax balance",
			Required:  true,
			Validator: SyntaxBalance,
		},
		{
			ID:        "semantic-safety",
			Name:      "Semantic safety",
			Required:  true,
			Validator: SemanticSafety,
		},
		{
			ID:        "dependency-completeness",
			Name:      "Dependency completeness",
			Required:  false,
			Validator: DependencyCompleteness,
		},
	}
}

// =============================================================================
// Syntax Balance
// =============================================================================

// SyntaxBalance checks that brackets pair up outside string literals.
//
// A heuristic, not a parser: it tracks (), {}, [] nesting and skips
// single-quoted, double-quoted, and backtick string contents.
func SyntaxBalance(_ context.Context, vc *Context) Result {
	var stack []byte
	var quote byte
	escaped := false
	line := 0

	pairs := map[byte]byte{')': '(', '}': '{', ']': '['}

	for i := 0; i < len(vc.Content); i++ {
		ch := vc.Content[i]
		if ch == '\n' {
			line++
		}

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}

		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '{', '[':
			stack = append(stack, ch)
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return Result{Errors: []string{
					fmt.Sprintf("%s: unbalanced %q at line %d", vc.Path, string(ch), line),
				}}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if quote != 0 {
		return Result{Errors: []string{fmt.Sprintf("%s: unterminated string literal", vc.Path)}}
	}
	if len(stack) > 0 {
		return Result{Errors: []string{
			fmt.Sprintf("%s: %d unclosed bracket(s), first is %q", vc.Path, len(stack), string(stack[0])),
		}}
	}
	return Result{Passed: true}
}

// =============================================================================
// Semantic Safety
// =============================================================================

// unsafePattern flags a dynamic-evaluation or injection marker.
type unsafePattern struct {
	re       *regexp.Regexp
	severity Severity
	message  string
}

var unsafePatterns = []unsafePattern{
	{regexp.MustCompile(`\beval\s*\(`), SeverityCritical, "eval() executes arbitrary strings"},
	{regexp.MustCompile(`new\s+Function\s*\(`), SeverityCritical, "new Function() executes arbitrary strings"},
	{regexp.MustCompile(`dangerouslySetInnerHTML`), SeverityHigh, "dangerouslySetInnerHTML injects raw HTML"},
	{regexp.MustCompile(`\.innerHTML\s*=`), SeverityHigh, "direct innerHTML assignment injects raw HTML"},
	{regexp.MustCompile(`document\.write\s*\(`), SeverityMedium, "document.write() injects into the live document"},
}

// SemanticSafety rejects content carrying dynamic-evaluation or raw
// injection markers. Critical findings fail the step; lower severities
// surface as warnings.
func SemanticSafety(_ context.Context, vc *Context) Result {
	result := Result{Passed: true}

	for lineNo, text := range strings.Split(vc.Content, "\n") {
		for _, p := range unsafePatterns {
			if !p.re.MatchString(text) {
				continue
			}
			if p.severity == SeverityCritical {
				result.Passed = false
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s:%d: %s", vc.Path, lineNo, p.message))
				continue
			}
			result.Warnings = append(result.Warnings, Warning{
				Step:     "semantic-safety",
				File:     vc.Path,
				Line:     lineNo,
				Severity: p.severity,
				Message:  p.message,
			})
		}
	}

	return result
}

// =============================================================================
// Dependency Completeness
// =============================================================================

var (
	defaultImportRe = regexp.MustCompile(`(?m)^\s*import\s+([A-Za-z_$][\w$]*)\s*(?:,|\s+from)`)
	namedImportRe   = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w$]+\s*,\s*)?\{([^}]*)\}\s*from`)
	jsxUsageRe      = regexp.MustCompile(`<([A-Z][\w$]*)`)
)

// DependencyCompleteness checks that every referenced component resolves
// to an import or a local declaration.
func DependencyCompleteness(_ context.Context, vc *Context) Result {
	known := make(map[string]bool)

	for _, m := range defaultImportRe.FindAllStringSubmatch(vc.Content, -1) {
		known[m[1]] = true
	}
	for _, m := range namedImportRe.FindAllStringSubmatch(vc.Content, -1) {
		for _, raw := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(raw)
			// "Foo as Bar" binds Bar locally.
			if parts := strings.Fields(name); len(parts) == 3 && parts[1] == "as" {
				name = parts[2]
			}
			if name != "" {
				known[name] = true
			}
		}
	}

	table := differ.NewRegexExtractor().Extract(vc.Content)
	for name := range table[differ.CategoryComponent] {
		known[name] = true
	}
	for name := range table[differ.CategoryFunction] {
		known[name] = true
	}

	result := Result{Passed: true}
	reported := make(map[string]bool)
	for lineNo, text := range strings.Split(vc.Content, "\n") {
		for _, m := range jsxUsageRe.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if known[name] || reported[name] {
				continue
			}
			reported[name] = true
			result.Passed = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s:%d: component %q has no matching import or declaration", vc.Path, lineNo, name))
		}
	}

	return result
}
