package source

import (
	"strings"
	"testing"

	"github.com/cogbench/cogbench/internal/errors"
)

const stroopSource = `import React, { useState, useEffect } from 'react';
import {
  Panel,
  Button,
} from "./ui";
import './styles.css';

const COLORS = ['red', 'green', 'blue'];

export default function StroopTask({ onComplete }) {
  const [trial, setTrial] = useState(0);
  const [responses, setResponses] = useState([]);

  useEffect(() => {
    if (trial >= 3) onComplete({ responses });
  }, [trial]);

  return Panel({},
    Stimulus({}, COLORS[trial % 3]),
    Button({ onClick: () => { setResponses(r => r.concat([Date.now()])); setTrial(t => t + 1); } }, 'Next'),
  );
}
`

func TestNormalize_StripsImports(t *testing.T) {
	out, err := Normalize(stroopSource)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if out.StrippedImports != 3 {
		t.Errorf("StrippedImports = %d, want 3", out.StrippedImports)
	}
	if strings.Contains(out.Text, "import") {
		t.Errorf("normalized text still contains import:\n%s", out.Text)
	}
	if !strings.Contains(out.Text, "const COLORS") {
		t.Error("non-import declarations must be preserved")
	}
}

func TestNormalize_KeepsDynamicImport(t *testing.T) {
	src := "function App() {\n  import('./lazy.js');\n  return '';\n}\n"
	out, err := Normalize(src)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !strings.Contains(out.Text, "import('./lazy.js')") {
		t.Errorf("dynamic import was removed:\n%s", out.Text)
	}
}

func TestNormalize_ExportConventions(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		wantComponent string
		wantContains  string
	}{
		{
			name:          "default named function",
			src:           "export default function Stroop() { return ''; }",
			wantComponent: "Stroop",
			wantContains:  "function Stroop()",
		},
		{
			name:          "default async function",
			src:           "export default async function Loader() { return ''; }",
			wantComponent: "Loader",
			wantContains:  "async function Loader()",
		},
		{
			name:          "default anonymous function",
			src:           "export default function (props) { return ''; }",
			wantComponent: EntryName,
			wantContains:  "var " + EntryName + " = function (props)",
		},
		{
			name:          "default arrow expression",
			src:           "export default ({ onComplete }) => Panel({}, 'hi');",
			wantComponent: EntryName,
			wantContains:  "var " + EntryName + " = ({ onComplete })",
		},
		{
			name:          "default identifier",
			src:           "const Flanker = () => '';\nexport default Flanker;",
			wantComponent: "Flanker",
			wantContains:  "const Flanker = () => '';",
		},
		{
			name:          "export list alias",
			src:           "function NBack() { return ''; }\nexport { NBack as default };",
			wantComponent: "NBack",
			wantContains:  "function NBack()",
		},
		{
			name:          "named function export",
			src:           "export function helper() {}\nexport function GoNoGo() { return ''; }",
			wantComponent: "GoNoGo",
			wantContains:  "function GoNoGo()",
		},
		{
			name:          "named const export",
			src:           "export const Survey = (props) => '';",
			wantComponent: "Survey",
			wantContains:  "const Survey = (props)",
		},
		{
			name:          "no export, top-level component",
			src:           "const delay = 500;\nfunction Reaction() { return ''; }",
			wantComponent: "Reaction",
			wantContains:  "function Reaction()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.src)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if out.Component != tt.wantComponent {
				t.Errorf("Component = %q, want %q", out.Component, tt.wantComponent)
			}
			if !strings.Contains(out.Text, tt.wantContains) {
				t.Errorf("Text missing %q:\n%s", tt.wantContains, out.Text)
			}
			if strings.Contains(out.Text, "export ") {
				t.Errorf("Text still contains export keyword:\n%s", out.Text)
			}
			if !strings.Contains(out.Text, "var "+EntryName+" = ") {
				t.Errorf("Text does not bind %s:\n%s", EntryName, out.Text)
			}
		})
	}
}

func TestNormalize_AppendsBinding(t *testing.T) {
	out, err := Normalize(stroopSource)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if out.Component != "StroopTask" {
		t.Errorf("Component = %q, want StroopTask", out.Component)
	}
	if !strings.HasSuffix(out.Text, "\nvar "+EntryName+" = StroopTask;\n") {
		t.Errorf("binding not appended:\n%s", out.Text)
	}
}

func TestNormalize_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "   \n\t"},
		{"only imports", "import React from 'react';\n"},
		{"no capitalised definition", "const x = 1;\nfunction helper() {}"},
		{"default identifier undefined", "export default Missing;"},
		{"class component", "export default class App extends React.Component {}"},
		{"two default exports", "export default function A() {}\nexport default function B() {}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.src)
			if err == nil {
				t.Fatalf("Normalize() = %+v, want SOURCE_SHAPE error", out)
			}
			if !errors.Is(err, errors.ErrSourceShape) {
				t.Errorf("error = %v, want SOURCE_SHAPE", err)
			}
		})
	}
}

func TestNormalize_IsPure(t *testing.T) {
	a, err := Normalize(stroopSource)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	b, err := Normalize(stroopSource)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if a.Text != b.Text {
		t.Error("Normalize is not deterministic")
	}
}
