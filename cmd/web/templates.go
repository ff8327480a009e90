package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"bookshop/internal/models"
)

//go:embed ui/html/*.tmpl
var uiFiles embed.FS

type templateData struct {
	Invoice     *models.Invoice
	Order       *models.Order
	CurrentYear int
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func humanDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02 Jan 2006")
}

var functions = template.FuncMap{
	"money":     money,
	"humanDate": humanDate,
}

// newTemplateCache parses every page together with the base layout and any
// partials.
func newTemplateCache() (map[string]*template.Template, error) {
	cache := make(map[string]*template.Template)

	pages, err := fs.Glob(uiFiles, "ui/html/*.page.tmpl")
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		name := path.Base(page)

		patterns := []string{"ui/html/base.layout.tmpl"}
		partials, err := fs.Glob(uiFiles, "ui/html/*.partial.tmpl")
		if err != nil {
			return nil, err
		}
		if len(partials) > 0 {
			patterns = append(patterns, "ui/html/*.partial.tmpl")
		}
		patterns = append(patterns, page)

		ts, err := template.New(name).Funcs(functions).ParseFS(uiFiles, patterns...)
		if err != nil {
			return nil, err
		}
		cache[name] = ts
	}

	return cache, nil
}

// render executes the page into a buffer first so a template error still
// produces a clean 500.
func (app *application) render(w http.ResponseWriter, status int, page string, data *templateData) {
	ts, ok := app.templateCache[page]
	if !ok {
		app.serverError(w, fmt.Errorf("the template %s does not exist", page))
		return
	}
	if data.CurrentYear == 0 {
		data.CurrentYear = time.Now().Year()
	}

	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", data); err != nil {
		app.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
