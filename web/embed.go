// Package web holds the embedded templates and static assets served by the
// dashboard.
package web

import "embed"

// FS embeds templates/ and static/ under their own directory names.
//
//go:embed templates/*.html static/*
var FS embed.FS
