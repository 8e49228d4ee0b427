package artifact

// BuildStatus is the outcome of the most recent build of an artifact.
type BuildStatus string

const (
	StatusBuilding BuildStatus = "building"
	StatusSuccess  BuildStatus = "success"
	StatusFailed   BuildStatus = "failed"
)

// Valid reports whether s is a known status.
func (s BuildStatus) Valid() bool {
	switch s {
	case StatusBuilding, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Artifact is one compiled, servable experiment document.
type Artifact struct {
	// InternalRef links the artifact to its owning experiment (1:1)
	InternalRef string

	// PublicID is a ULID used to address the artifact publicly
	PublicID string

	// Title and Description come from the source unit of the latest build
	Title       string
	Description string

	// HTMLContent is the assembled document; empty when the build failed
	HTMLContent string

	// CSSContent and JSContent are the fragments the document was built from
	CSSContent string
	JSContent  string

	Version     Version
	BuildStatus BuildStatus

	// BuildError is set iff BuildStatus is failed
	BuildError *string

	IsPublic bool

	// AccessCount counts successful public fetches
	AccessCount int64

	// LastAccessedAt is the Unix timestamp of the latest public fetch (nullable)
	LastAccessedAt *int64

	// CreatedAt and UpdatedAt are Unix timestamps
	CreatedAt int64
	UpdatedAt int64
}

// Servable reports whether the artifact has content to serve.
func (a *Artifact) Servable() bool {
	return a.BuildStatus == StatusSuccess
}

// Summary is an artifact's metadata without content, for owner listings.
type Summary struct {
	InternalRef    string      `json:"internal_ref"`
	PublicID       string      `json:"public_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Version        string      `json:"version"`
	BuildStatus    BuildStatus `json:"build_status"`
	BuildError     *string     `json:"build_error,omitempty"`
	IsPublic       bool        `json:"is_public"`
	AccessCount    int64       `json:"access_count"`
	LastAccessedAt *int64      `json:"last_accessed_at,omitempty"`
	HTMLChars      int         `json:"html_chars"`
	CreatedAt      int64       `json:"created_at"`
	UpdatedAt      int64       `json:"updated_at"`
}

// ToSummary converts an Artifact to a Summary by stripping content.
func (a *Artifact) ToSummary() Summary {
	return Summary{
		InternalRef:    a.InternalRef,
		PublicID:       a.PublicID,
		Title:          a.Title,
		Description:    a.Description,
		Version:        a.Version.String(),
		BuildStatus:    a.BuildStatus,
		BuildError:     a.BuildError,
		IsPublic:       a.IsPublic,
		AccessCount:    a.AccessCount,
		LastAccessedAt: a.LastAccessedAt,
		HTMLChars:      len(a.HTMLContent),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
