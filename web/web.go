// Package web holds the page templates and browser assets.
package web

import "embed"

// Templates contains the HTML page templates.
//
//go:embed templates/*.html
var Templates embed.FS

// Static contains the files served under /static when no static directory
// is configured.
//
//go:embed static
var Static embed.FS
