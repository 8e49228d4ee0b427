package source

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// LintResult contains the results of linting component source.
type LintResult struct {
	Valid       bool
	TooLarge    bool
	ActualChars int
	MaxChars    int

	// Warnings describe constructs the runtime cannot honour. They do not
	// fail the build; the document will fail in the browser instead.
	Warnings []string
}

var (
	hookCall = regexp.MustCompile(`\b(use[A-Z][A-Za-z0-9_]*)[ \t]*\(`)
	jsxMark  = regexp.MustCompile(`(?:return|=>)[ \t\r\n]*\(?[ \t\r\n]*<[A-Za-z][A-Za-z0-9.]*[\s/>]`)
)

// Lint checks size limits and vocabulary use. maxChars <= 0 disables the size check.
func Lint(text string, maxChars int) *LintResult {
	result := &LintResult{
		Valid:       true,
		ActualChars: CountChars(text),
		MaxChars:    maxChars,
	}

	if maxChars > 0 && result.ActualChars > maxChars {
		result.TooLarge = true
		result.Valid = false
	}

	seen := make(map[string]bool)
	for _, m := range hookCall.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if IsHook(name) || seen[name] {
			continue
		}
		seen[name] = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unsupported hook %q: only %s are available", name, strings.Join(Hooks, ", ")))
	}

	if jsxMark.MatchString(text) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("JSX markup is not compiled; build markup with the helpers (%s)", strings.Join(HelperNames(), ", ")))
	}

	return result
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
