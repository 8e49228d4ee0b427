package mcp

import "github.com/mark3labs/mcp-go/mcp"

var buildToolDef = mcp.NewTool("artifact_build",
	mcp.WithDescription("Compile component source into a new experiment artifact. "+
		"The source must define one function component (default export, named export or a capitalised top-level function). "+
		"Available in scope: React, useState, useEffect, the markup helpers Panel, Card, Stack, Row, Heading, Text, Stimulus, Feedback, Button, Choice, TextInput, Image, Progress, and escapeHtml. "+
		"Fails with CONFLICT if ref already has an artifact; use artifact_rebuild to replace it. "+
		"A compile failure is recorded and returned with build_status \"failed\", not as a tool error."),
	mcp.WithString("ref", mcp.Required(), mcp.Description("Internal reference chosen by the owner, e.g. exp-1")),
	mcp.WithString("title", mcp.Description("Document title (default: ref)")),
	mcp.WithString("description", mcp.Description("Markdown shown above the task")),
	mcp.WithString("source_text", mcp.Required(), mcp.Description("Component source text")),
)

var rebuildToolDef = mcp.NewTool("artifact_rebuild",
	mcp.WithDescription("Recompile source for ref. Keeps the public id and publication state and advances the patch version; creates the artifact at 1.0.0 if ref is new. "+
		"A failed rebuild keeps the version and takes the document offline until the next successful rebuild."),
	mcp.WithString("ref", mcp.Required(), mcp.Description("Internal reference")),
	mcp.WithString("title", mcp.Description("Document title (default: ref)")),
	mcp.WithString("description", mcp.Description("Markdown shown above the task")),
	mcp.WithString("source_text", mcp.Required(), mcp.Description("Component source text")),
)

var publishToolDef = mcp.NewTool("artifact_publish",
	mcp.WithDescription("Make the artifact for ref reachable at /e/{public_id}. Failed builds stay unreachable until a rebuild succeeds."),
	mcp.WithString("ref", mcp.Required(), mcp.Description("Internal reference")),
)

var unpublishToolDef = mcp.NewTool("artifact_unpublish",
	mcp.WithDescription("Hide the artifact for ref from the public path. Its public id and version are kept."),
	mcp.WithString("ref", mcp.Required(), mcp.Description("Internal reference")),
)

var statusToolDef = mcp.NewTool("artifact_status",
	mcp.WithDescription("Owner view of one artifact: version, build status and error, visibility and access counts. Address by exactly one of ref or public_id."),
	mcp.WithString("ref", mcp.Description("Internal reference")),
	mcp.WithString("public_id", mcp.Description("Public id")),
)

var listToolDef = mcp.NewTool("artifact_list",
	mcp.WithDescription("List artifacts, most recently updated first."),
	mcp.WithBoolean("public_only", mcp.Description("Only published artifacts")),
	mcp.WithString("status", mcp.Description("Filter by build status"), mcp.Enum("building", "success", "failed")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)
