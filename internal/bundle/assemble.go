// Package bundle assembles normalized component source, the emitted runtime
// and the baseline stylesheet into one standalone HTML document.
package bundle

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cogbench/cogbench/internal/errors"
	"github.com/cogbench/cogbench/internal/runtime"
	"github.com/cogbench/cogbench/internal/source"
)

// MountID is the id of the element the runtime renders into.
const MountID = "trial-root"

//go:embed assets/base.css
var baseCSS string

// Bundle is one assembled document plus the fragments it was built from.
type Bundle struct {
	HTML string
	CSS  string
	JS   string
}

// Options controls document assembly.
type Options struct {
	// CDNStylesheet is linked from the document head when non-empty.
	CDNStylesheet string
}

type shellData struct {
	Title         string
	Description   string
	Intro         template.HTML
	CDNStylesheet string
	CSS           template.CSS
	JS            template.JS
	MountID       string
}

// Title and description go through html/template, which escapes & < > " '
// in both element and attribute contexts.
var shellTemplate = template.Must(template.New("shell").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>{{.Title}}</title>
    <meta name="description" content="{{.Description}}" />
    <meta property="og:title" content="{{.Title}}" />
    <meta name="generator" content="cogbench" />
{{- if .CDNStylesheet}}
    <link rel="stylesheet" href="{{.CDNStylesheet}}" />
{{- end}}
    <style>{{.CSS}}</style>
  </head>
  <body class="bg-gray-50">
    <main class="trial-shell">
{{- if .Intro}}
      <header class="trial-intro">{{.Intro}}</header>
{{- end}}
      <div id="{{.MountID}}" aria-live="polite"><div class="trial-loading trial-pulse">Loading…</div></div>
    </main>
    <script>{{.JS}}</script>
  </body>
</html>
`))

var (
	scriptClose = regexp.MustCompile(`(?i)</script`)
	commentOpen = regexp.MustCompile(`<!--`)
)

// Assemble builds the standalone document for unit from its normalized source.
// Failures are COMPILE_ASSEMBLY errors.
func Assemble(unit source.Unit, n *source.Normalized, opts Options) (*Bundle, error) {
	for field, v := range map[string]string{"title": unit.Title, "description": unit.Description, "source": n.Text} {
		if !utf8.ValidString(v) {
			return nil, errors.NewCompileAssembly(fmt.Errorf("%s is not valid UTF-8", field))
		}
	}

	program, err := runtime.Program(n, MountID)
	if err != nil {
		return nil, errors.NewCompileAssembly(err)
	}
	js := EscapeScript(program)

	intro, err := renderDescription(unit.Description)
	if err != nil {
		return nil, errors.NewCompileAssembly(err)
	}

	var buf bytes.Buffer
	err = shellTemplate.Execute(&buf, shellData{
		Title:         unit.Title,
		Description:   unit.Description,
		Intro:         intro,
		CDNStylesheet: opts.CDNStylesheet,
		CSS:           template.CSS(baseCSS),
		JS:            template.JS(js),
		MountID:       MountID,
	})
	if err != nil {
		return nil, errors.NewCompileAssembly(err)
	}

	doc := buf.String()
	if err := Verify(doc, js); err != nil {
		return nil, errors.NewCompileAssembly(err)
	}

	return &Bundle{HTML: doc, CSS: baseCSS, JS: js}, nil
}

// EscapeScript neutralises sequences that would end or corrupt an inline
// script element. "</script" becomes "<\/script" and "<!--" becomes
// "\x3C!--"; both read the same inside string literals, regex literals
// (including the u flag) and comments. Used bare as operators, as in
// "a <!--b", they no longer parse.
func EscapeScript(js string) string {
	js = scriptClose.ReplaceAllStringFunc(js, func(m string) string {
		return `<\/` + m[2:]
	})
	return commentOpen.ReplaceAllString(js, `\x3C!--`)
}

// renderDescription converts Markdown to HTML. goldmark drops raw HTML and
// dangerous link schemes unless configured otherwise.
func renderDescription(md string) (template.HTML, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render description: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Verify re-parses doc and checks it has exactly one mount point and exactly
// one script element whose text is js.
func Verify(doc, js string) error {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return fmt.Errorf("parse assembled document: %w", err)
	}

	mounts := 0
	var scripts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Script {
				var text strings.Builder
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					text.WriteString(c.Data)
				}
				scripts = append(scripts, text.String())
			}
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == MountID {
					mounts++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if mounts != 1 {
		return fmt.Errorf("expected exactly one #%s element, found %d", MountID, mounts)
	}
	if len(scripts) != 1 {
		return fmt.Errorf("expected exactly one script element, found %d", len(scripts))
	}
	if scripts[0] != parsedText.Replace(js) {
		return fmt.Errorf("inline script was altered by the document structure")
	}
	return nil
}

// parsedText mirrors the input preprocessing the HTML parser applies to raw text.
var parsedText = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "�")
