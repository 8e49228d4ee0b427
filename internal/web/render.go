package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/errors"
	"github.com/cogbench/cogbench/internal/ops"
)

// policy builds Content-Security-Policy values for compiled documents.
// Documents run author code, so they are sandboxed into an opaque origin and
// may not reach the network except for the stylesheet host.
type policy struct {
	styleHost string
}

func newPolicy(cdnStylesheet string) policy {
	return policy{styleHost: originOf(cdnStylesheet)}
}

// document returns the CSP for a compiled document. frameAncestors is a CSP
// source list such as 'none' or 'self'.
func (p policy) document(frameAncestors string) string {
	style := "style-src 'unsafe-inline'"
	font := "font-src 'none'"
	if p.styleHost != "" {
		style += " " + p.styleHost
		font = "font-src " + p.styleHost
	}
	return strings.Join([]string{
		"sandbox allow-scripts allow-downloads",
		"default-src 'none'",
		"script-src 'unsafe-inline'",
		style,
		font,
		"img-src data: blob:",
		"connect-src 'none'",
		"form-action 'none'",
		"base-uri 'none'",
		"frame-ancestors " + frameAncestors,
	}, "; ")
}

// failedPageCSP covers the owner-facing build failure page, which carries no scripts.
const failedPageCSP = "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'self'; base-uri 'none'; form-action 'none'"

// originOf returns scheme://host for an https URL, or "" if u is not one.
func originOf(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// writeDocument writes a compiled document. Documents are never cached so that
// each fetch reaches the access counter and unpublish takes effect at once.
func writeDocument(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

// Bodies for the public path. NOT_FOUND never carries the identifier, and
// internal failures never carry their cause.
const (
	notFoundBody = "not found"
	internalBody = "internal server error"
)

// publicStatus maps err to a status and body safe for anonymous callers.
func (h *Handlers) publicStatus(r *http.Request, err error) (int, errors.ErrorCode, string) {
	var cErr *errors.CogError
	if stderrors.As(err, &cErr) {
		switch cErr.Code {
		case errors.ErrNotFound:
			return http.StatusNotFound, errors.ErrNotFound, notFoundBody
		case errors.ErrInvalidRequest:
			return http.StatusBadRequest, errors.ErrInvalidRequest, cErr.Message
		}
	}
	h.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	return http.StatusInternalServerError, errors.ErrInternal, internalBody
}

// renderPublicError writes a plain-text error for document routes.
func (h *Handlers) renderPublicError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, msg := h.publicStatus(r, err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}

// renderJSONError writes the JSON error envelope for API routes.
func (h *Handlers) renderJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := h.publicStatus(r, err)
	renderJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    string(code),
			"message": msg,
			"status":  status,
		},
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

var failedPage = template.Must(template.New("failed").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Build failed: {{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 3rem auto; padding: 0 1rem; color: #1f2937; }
pre { white-space: pre-wrap; background: #fef2f2; border: 1px solid #fca5a5; padding: 1rem; border-radius: .5rem; }
.meta { color: #6b7280; }
</style>
</head>
<body>
<h1>Build failed</h1>
<p class="meta">{{.Title}} &middot; version {{.Version}} &middot; {{if .IsPublic}}published{{else}}private{{end}}</p>
<p>The last build did not produce a document. Participants see a not-found page until a rebuild succeeds.</p>
<pre>{{.BuildError}}</pre>
</body>
</html>
`))

// renderFailedPage renders the owner-facing page for a failed build.
func (h *Handlers) renderFailedPage(w http.ResponseWriter, p *ops.PreviewView) {
	var buf bytes.Buffer
	if err := failedPage.Execute(&buf, p); err != nil {
		h.logger.Error("failed page render error", zap.Error(err))
		http.Error(w, internalBody, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
