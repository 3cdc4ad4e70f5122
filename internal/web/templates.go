package web

import (
	"database/sql"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates holds all parsed templates
type Templates struct {
	index     *template.Template
	task      *template.Template
	errorPage *template.Template
}

// ParseTemplates parses all templates and returns a Templates struct
func ParseTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"short": shortID,
	}

	base, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, err
	}

	// Each page clones base and adds its content block
	index, err := template.Must(base.Clone()).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	task, err := template.Must(base.Clone()).ParseFS(templateFS, "templates/task.html")
	if err != nil {
		return nil, err
	}

	errorPage, err := template.Must(base.Clone()).ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, err
	}

	return &Templates{
		index:     index,
		task:      task,
		errorPage: errorPage,
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Local().Format("2006-01-02 15:04:05")
}
