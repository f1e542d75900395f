// Package web holds the dashboard page template and its static assets.
package web

import "embed"

// FS contains templates/ and static/
//
//go:embed templates/*.html static/*
var FS embed.FS
