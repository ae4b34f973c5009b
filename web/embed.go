// Package web embeds the HTML templates and static assets of the dashboard.
//
// Usage in the API server:
//
//	tmpl := web.Templates()
//	tmpl.ExecuteTemplate(w, "dashboard.html", page)
//	http.FileServerFS(web.StaticFS())
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"time"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 15:04 MST")
	},
}

// Templates parses the embedded page templates. It panics when a template
// does not parse, which can only happen at build time.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(Funcs).ParseFS(templates, "templates/*.html"))
}

// StaticFS returns the filesystem rooted at static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic("web.StaticFS: " + err.Error())
	}
	return sub
}
