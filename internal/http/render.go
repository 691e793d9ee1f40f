package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/pipeline"
)

// Full pages each define "title" and "content" and are rendered through
// "layout". Partials live in the shared set.
var (
	pageFiles    = []string{"login.html", "overview.html", "page.html"}
	partialFiles = []string{"layout.html", "table.html", "forms.html", "exports.html"}
)

// renderer holds one template set per full page, each a clone of the shared
// partials.
type renderer struct {
	partials *template.Template
	pages    map[string]*template.Template
}

var funcs = template.FuncMap{
	"money":   core.FormatAmount,
	"compact": pipeline.FormatCompact,
	"add":     func(a, b int) int { return a + b },
	"sub":     func(a, b int) int { return a - b },
	"date": func(t any) string {
		if tt := core.ParseDate(t); tt != nil {
			return tt.Format(core.DateLayout)
		}
		return ""
	},
	"lower": strings.ToLower,
	"num": func(v float64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
	"list": func(v ...string) []string { return v },
	"pageSizes": func() []int {
		return pipeline.PageSizes
	},
	// href joins a page slug and an encoded state into a link. The state is
	// already query-escaped.
	"href": func(slug, path, query string) template.URL {
		u := "/" + slug + path
		if query != "" {
			u += "?" + query
		}
		return template.URL(u)
	},
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	paths := make([]string, len(partialFiles))
	for i, f := range partialFiles {
		paths[i] = "templates/" + f
	}
	partials, err := template.New("").Funcs(funcs).ParseFS(fsys, paths...)
	if err != nil {
		return nil, fmt.Errorf("parse partial templates: %w", err)
	}

	r := &renderer{partials: partials, pages: make(map[string]*template.Template, len(pageFiles))}
	for _, f := range pageFiles {
		t, err := partials.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone templates for %s: %w", f, err)
		}
		if _, err := t.ParseFS(fsys, "templates/"+f); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", f, err)
		}
		r.pages[f] = t
	}
	return r, nil
}

// page renders the full page name through the layout. Output is buffered so
// a template error never leaves a half-written response.
func (r *renderer) page(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.pages[name]
	if !ok {
		log.FromContext(req.Context()).ErrorContext(req.Context(), "Unknown page template", "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	r.execute(w, req, status, t, "layout", data)
}

// partial renders a named template from the shared set.
func (r *renderer) partial(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	r.execute(w, req, status, r.partials, name, data)
}

func (r *renderer) execute(w http.ResponseWriter, req *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(req.Context()).WithComponent(log.ComponentTemplate).
			ErrorContext(req.Context(), "Template execution failed", log.FieldError, err, "template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
