// Package handler contains HTTP request handlers for the dashboard application.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc — a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, form values, cookies)
// 2. Call business logic (AuthService, the dashboard cycle, commit search)
// 3. Write the HTTP response (an HTML page or JSON)
//
// Handlers should NOT contain business logic — they are the "glue" between HTTP and your app.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sakif/ghdash/internal/model"
)

// pageNames are the templates under templates/ that render a whole page.
// Each one is parsed together with base.html.
var pageNames = []string{"login", "dashboard", "commits", "error"}

// Pages holds the parsed HTML templates, one set per page.
//
// WHY ONE SET PER PAGE?
// Every page defines its own {{define "content"}} block. If all pages were
// parsed into a single template set, the last "content" would win and every
// page would render the same body. Parsing base.html + page.html per page keeps
// them apart.
type Pages struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewPages parses the templates in fsys once at startup.
//
// TEMPLATE PARSING:
// template.ParseFS() reads HTML files from any fs.FS (here the embedded web.FS)
// and compiles them into an internal tree structure. We parse "base.html" and
// the page together so they can reference each other:
//   - base.html defines the overall page structure with {{template "content" .}} placeholder
//   - dashboard.html defines {{define "content"}}...{{end}} to fill that placeholder
func NewPages(fsys fs.FS, logger *slog.Logger) (*Pages, error) {
	p := &Pages{
		templates: make(map[string]*template.Template, len(pageNames)),
		logger:    logger,
	}

	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys,
			"templates/base.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	return p, nil
}

// templateFuncs are available in every template.
var templateFuncs = template.FuncMap{
	// comma renders 1234567 as "1,234,567".
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	// ago renders a time as "3 hours ago".
	"ago": func(t time.Time) string { return humanize.Time(t) },
	// firstLine keeps the subject line of a commit message.
	"firstLine": func(s string) string {
		line, _, _ := strings.Cut(s, "\n")
		return strings.TrimSpace(line)
	},
}

// layout is the data base.html needs. Every page's view embeds it.
type layout struct {
	Title string
	// User is nil on pages shown to signed-out visitors.
	User *model.UserProfile
}

// render executes the "base" template of page with data.
//
// The page is rendered into a buffer first. If execution fails halfway, the
// client gets a clean 500 instead of half a page with a 200 status.
func (p *Pages) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := p.templates[page]
	if !ok {
		p.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Set content type header BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		p.logger.Debug("failed to write page", slog.String("error", err.Error()))
	}
}

// errorView is the data of error.html.
type errorView struct {
	layout
	Error string
}

// renderError shows err on the error page with the status it maps to.
func (p *Pages) renderError(w http.ResponseWriter, user *model.UserProfile, err error) {
	status, _, message := classify(err)
	p.render(w, status, "error", errorView{
		layout: layout{Title: http.StatusText(status), User: user},
		Error:  message,
	})
}
