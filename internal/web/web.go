package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"games_catalog/internal/identity"
)

//go:embed templates static
var files embed.FS

const layout = "templates/base.html"

// Page is what every template receives.
type Page struct {
	Title   string
	Viewer  identity.Identity
	Flashes []Flash
	Data    any
}

type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
	"seq": func(from, to int) []int {
		var s []int
		for i := from; i <= to; i++ {
			s = append(s, i)
		}
		return s
	},
	"deref": func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	},
}

// NewRenderer parses every page under templates/ together with the layout.
func NewRenderer() (*Renderer, error) {
	const op = "web.NewRenderer"

	r := &Renderer{pages: map[string]*template.Template{}}

	err := fs.WalkDir(files, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == layout || path.Ext(p) != ".html" {
			return nil
		}

		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")

		t, err := template.New(path.Base(layout)).Funcs(funcs).ParseFS(files, layout, p)
		if err != nil {
			return err
		}
		r.pages[name] = t

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r, nil
}

// Render executes the page into a buffer first so a template error never
// leaves a half written response.
func (r *Renderer) Render(w io.Writer, name string, page Page) error {
	const op = "web.Render"

	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("%s: unknown page %q", op, name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		return fmt.Errorf("%s: %s: %w", op, name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}
