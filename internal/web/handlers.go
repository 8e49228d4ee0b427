package web

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/ops"
)

// Handlers contains HTTP route handlers for the publication gate.
type Handlers struct {
	db     *sql.DB
	logger *zap.Logger
	policy policy
}

// HandleDocument handles GET /e/{publicId}: the participant-facing document.
// Every successful response counts as one access.
func (h *Handlers) HandleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := ops.Document(r.Context(), h.db, r.PathValue("publicId"))
	if err != nil {
		h.renderPublicError(w, r, err)
		return
	}

	w.Header().Set("Content-Security-Policy", h.policy.document("'none'"))
	w.Header().Set("X-Frame-Options", "DENY")
	writeDocument(w, http.StatusOK, doc.HTML)
}

// HandlePreview handles GET /e/{publicId}/preview, the owner view. Works for
// private artifacts, is never counted, and shows failed builds as an error page.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := ops.Preview(r.Context(), h.db, r.PathValue("publicId"))
	if err != nil {
		h.renderPublicError(w, r, err)
		return
	}

	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	if p.BuildStatus != artifact.StatusSuccess {
		w.Header().Set("Content-Security-Policy", failedPageCSP)
		h.renderFailedPage(w, p)
		return
	}
	w.Header().Set("Content-Security-Policy", h.policy.document("'self'"))
	writeDocument(w, http.StatusOK, p.HTML)
}

// HandleMetadata handles GET /api/e/{publicId}: public metadata as JSON.
func (h *Handlers) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := ops.Metadata(r.Context(), h.db, r.PathValue("publicId"))
	if err != nil {
		h.renderJSONError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, meta)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
