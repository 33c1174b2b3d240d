// Package render writes resource representations as JSON or as a browsable HTML page.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MIMEHTML is the content type of rendered pages.
const MIMEHTML = "text/html; charset=utf-8"

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 60em; }
pre { background: #f5f5f5; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="description">{{.Description}}</div>
<pre>{{.Body}}</pre>
</body>
</html>
`))

// Renderer converts representations to JSON or HTML.
type Renderer struct {
	md          goldmark.Markdown
	textPolicy  *bluemonday.Policy
	linksPolicy *bluemonday.Policy
}

// New creates a Renderer.
func New() *Renderer {
	links := bluemonday.NewPolicy()
	links.AllowAttrs("href").OnElements("a")
	links.AllowURLSchemes("http", "https")
	links.AllowRelativeURLs(true)

	return &Renderer{
		md:          goldmark.New(goldmark.WithExtensions(extension.GFM)),
		textPolicy:  bluemonday.UGCPolicy(),
		linksPolicy: links,
	}
}

// JSON encodes v indented, without escaping HTML characters.
func (r *Renderer) JSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode representation: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown converts markdown to sanitized HTML.
func (r *Renderer) Markdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(r.textPolicy.SanitizeBytes(buf.Bytes())), nil
}

// HTML writes v as a page. Anchors rendered into v's links stay clickable,
// everything else is escaped.
func (r *Renderer) HTML(w io.Writer, title, description string, v interface{}) error {
	body, err := r.JSON(v)
	if err != nil {
		return err
	}
	desc, err := r.Markdown(description)
	if err != nil {
		return err
	}
	return page.Execute(w, struct {
		Title       string
		Description template.HTML
		Body        template.HTML
	}{
		Title:       title,
		Description: desc,
		Body:        template.HTML(r.linksPolicy.SanitizeBytes(body)),
	})
}
