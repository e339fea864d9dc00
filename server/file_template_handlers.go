package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"

	templatePage         = "page.html"
	templateUnauthorized = "unauthorized.html"
	templateError        = "error.html"
	templateLayout       = "layout.html"
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses name together with the shared layout from the embedded filesystem.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), name, templateLayout)
}

type pageTemplates struct {
	page         *template.Template
	unauthorized *template.Template
	error        *template.Template
}

func mustParsePageTemplates() *pageTemplates {
	parse := func(name string) *template.Template {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			panic("Failed to parse " + name + " template: " + err.Error())
		}
		return tmpl
	}
	return &pageTemplates{
		page:         parse(templatePage),
		unauthorized: parse(templateUnauthorized),
		error:        parse(templateError),
	}
}

func renderTemplate(w http.ResponseWriter, tmpl *template.Template, status int, data any) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
	}
}
