// Package hal renders the _links and _embedded sections of resource representations.
package hal

import (
	"fmt"
	"regexp"
	"strings"
)

// Object is a resource representation.
type Object map[string]interface{}

// Link is a single _links entry.
type Link struct {
	Href string `json:"href"`
}

// Links maps link names to links.
type Links map[string]Link

// Linker builds links, either as plain URLs or as clickable anchors for HTML output.
type Linker struct {
	Clickable bool
}

// Link renders one URL.
func (l Linker) Link(url string) Link {
	if l.Clickable {
		return Link{Href: fmt.Sprintf("<a href='%s'>%s</a>", url, url)}
	}
	return Link{Href: url}
}

// Links renders a name to URL map.
func (l Linker) Links(urls map[string]string) Links {
	links := make(Links, len(urls))
	for name, url := range urls {
		links[name] = l.Link(url)
	}
	return links
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Template is a resource URL with named placeholders, e.g. /users/{user_id}.
type Template string

// Params returns the placeholder names in order.
func (t Template) Params() []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(string(t), -1) {
		names = append(names, m[1])
	}
	return names
}

// Expand fills the placeholders in order with args.
func (t Template) Expand(args ...interface{}) string {
	i := 0
	return placeholder.ReplaceAllStringFunc(string(t), func(m string) string {
		if i >= len(args) {
			return m
		}
		s := fmt.Sprint(args[i])
		i++
		return s
	})
}

// Route converts the template to a fiber route, /users/{user_id} to /users/:user_id.
func (t Template) Route() string {
	return placeholder.ReplaceAllStringFunc(string(t), func(m string) string {
		return ":" + strings.Trim(m, "{}")
	})
}
