// Package template renders the HTML body of notification emails.
package template

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/bidconnect/notification-service/internal/domain"
)

//go:embed emails/*.html
var emailFS embed.FS

const layoutFile = "emails/layout.html"

// Renderer turns a template id and its variables into an email body.
type Renderer interface {
	Render(templateID string, vars map[string]string) (string, error)
}

// HTMLRenderer serves the embedded emails/<templateID>.html templates, each
// wrapped in the shared layout. Templates are parsed once at construction.
type HTMLRenderer struct {
	templates map[string]*htmltemplate.Template
}

// NewHTMLRenderer parses every embedded email template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	return newHTMLRenderer(emailFS)
}

func newHTMLRenderer(fsys fs.FS) (*HTMLRenderer, error) {
	layout, err := htmltemplate.New("layout").Option("missingkey=zero").ParseFS(fsys, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "emails/*.html")
	if err != nil {
		return nil, err
	}

	r := &HTMLRenderer{templates: make(map[string]*htmltemplate.Template)}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		r.templates[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return r, nil
}

// Render executes the template named templateID with vars.
// Missing variables render as empty strings.
func (r *HTMLRenderer) Render(templateID string, vars map[string]string) (string, error) {
	t, ok := r.templates[templateID]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, templateID)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", vars); err != nil {
		return "", fmt.Errorf("render %s: %w", templateID, err)
	}
	return buf.String(), nil
}

var _ Renderer = (*HTMLRenderer)(nil)
