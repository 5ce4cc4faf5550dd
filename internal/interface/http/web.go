package http

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/yanqian/sparky-web/internal/domain/chat"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

func loadTemplates() *template.Template {
	funcs := template.FuncMap{
		"speaker": func(role chat.Role) string {
			if role == chat.RoleUser {
				return "You"
			}
			return "Sparky"
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(webFS, "web/templates/*.html"))
}

func staticFS() http.FileSystem {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
