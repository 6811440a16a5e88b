// Package view renders the HTML pages from templates embedded in the binary.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/go-club/auth"
	"github.com/diewo77/go-club/i18n"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Option is one choice of a select or radio field.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Field is a form field prepared for rendering: translated and prefilled.
type Field struct {
	Name    string
	Label   string
	Widget  string
	Value   string
	Checked bool
	Attrs   map[string]string
	Options []Option
	Errors  []string
}

// Renderer holds the parsed pages. Each page is layout.html plus its own file.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page of the embedded template set.
func New() (*Renderer, error) {
	return NewFromFS(templatesFS, "templates")
}

// NewFromFS parses pages from fsys/dir, which must contain layout.html.
func NewFromFS(fsys fs.FS, dir string) (*Renderer, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	layout := path.Join(dir, "layout.html")
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		if name == layout {
			continue
		}
		t, err := template.New("layout.html").Funcs(Funcs(i18n.Default)).ParseFS(fsys, layout, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[path.Base(name)] = t
	}
	return r, nil
}

// Funcs returns the template helpers bound to lang.
func Funcs(lang string) template.FuncMap {
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"year": func() int { return time.Now().Year() },
		// attrs renders a map as HTML attributes in stable order.
		"attrs": func(m map[string]string) template.HTMLAttr {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var b strings.Builder
			for _, k := range keys {
				fmt.Fprintf(&b, ` %s="%s"`, template.HTMLEscapeString(k), template.HTMLEscapeString(m[k]))
			}
			return template.HTMLAttr(b.String())
		},
		// dict creates a map from key-value pairs for passing to sub-templates.
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// Render executes page name with data and writes it with status.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	page, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	lang := i18n.LangFromContext(r.Context())
	t, err := page.Clone()
	if err != nil {
		return err
	}
	t.Funcs(Funcs(lang))

	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}

	// buffer so a failing template does not leave a half-written page
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
