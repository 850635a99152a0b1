// Package web holds the HTML templates rendered by the dashboard.
package web

import "embed"

//go:embed templates/*.html
var TemplateFiles embed.FS
