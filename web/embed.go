// Package web holds the HTML templates and static assets, compiled into the
// binary.
package web

import "embed"

// FS contains templates/*.html and static/*.
//
//go:embed templates/*.html static/*
var FS embed.FS
