package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{
			"compact": CompactCount,
			"full":    FullCount,
		}).
		ParseFS(templateFS, "templates/*.html")
}
