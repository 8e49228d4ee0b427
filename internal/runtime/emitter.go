// Package runtime emits the browser-side reactive runtime that compiled
// documents execute: two hooks, a fixed helper vocabulary and a completion
// view. The runtime itself lives in assets/runtime.js; this package bakes the
// vocabulary into it and wraps normalized component source for mounting.
package runtime

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cogbench/cogbench/internal/source"
)

//go:embed assets/runtime.js
var runtimeJS string

const vocabularyMarker = "/*@@VOCABULARY@@*/[]"

// FactoryName is the function that receives a render context's bound scope
// and returns the root component.
const FactoryName = "__trialFactory"

// Emit returns the runtime script with helpers baked in as its vocabulary.
func Emit(helpers []source.Helper) (string, error) {
	if !strings.Contains(runtimeJS, vocabularyMarker) {
		return "", fmt.Errorf("runtime asset is missing the vocabulary marker")
	}
	vocab, err := json.Marshal(helpers)
	if err != nil {
		return "", fmt.Errorf("encode vocabulary: %w", err)
	}
	return strings.Replace(runtimeJS, vocabularyMarker, string(vocab), 1), nil
}

// WrapFactory wraps normalized source in a factory function. Every name in
// source.Bindings is declared as a local taken from the scope argument, so
// the component resolves hooks and helpers lexically against its own render
// context. Author code runs in a nested function so it may redeclare them.
func WrapFactory(n *source.Normalized) string {
	bindings := source.Bindings()
	decls := make([]string, len(bindings))
	for i, name := range bindings {
		decls[i] = fmt.Sprintf("%s = __scope.%s", name, name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "function %s(__scope) {\n", FactoryName)
	fmt.Fprintf(&b, "  var %s;\n", strings.Join(decls, ",\n      "))
	b.WriteString("  return (function () {\n")
	b.WriteString(n.Text)
	if !strings.HasSuffix(n.Text, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "    return %s;\n", source.EntryName)
	b.WriteString("  })();\n}\n")
	return b.String()
}

// Boot returns the statement that mounts the factory onto the element with mountID.
func Boot(mountID string) string {
	id, _ := json.Marshal(mountID)
	return fmt.Sprintf("TrialRuntime.mount(%s, document.getElementById(%s));\n", FactoryName, id)
}

// Program concatenates the runtime, the wrapped component and the boot call
// into one script body.
func Program(n *source.Normalized, mountID string) (string, error) {
	rt, err := Emit(source.Helpers)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(rt)
	b.WriteString("\n")
	b.WriteString(WrapFactory(n))
	b.WriteString(Boot(mountID))
	return b.String(), nil
}
