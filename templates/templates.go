// Package templates holds the HTML pages of the web front end.
package templates

import (
	"embed"
	"html/template"
)

//go:embed pages/*.html
var pages embed.FS

// Load parses every page. Each page is addressed by its file name, e.g.
// "index.html", and shares the blocks defined in layout.html.
func Load() (*template.Template, error) {
	return template.ParseFS(pages, "pages/*.html")
}
