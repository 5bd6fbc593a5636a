package runtime

import (
	"net/url"
	"strings"
	"text/template"
)

// Escaper encodes a value's string form before it is appended to the
// output.  Escapers are registered by output encoding name in a
// process-wide registry, initialized once and read-only afterwards.
type Escaper interface {
	Name() string
	Escape(s string) string
}

var escapers = make(map[string]Escaper)

// RegisterEscaper adds an escaper to the process-wide registry.  It must
// be called during initialization, before any render starts.
func RegisterEscaper(e Escaper) {
	escapers[e.Name()] = e
}

// EscaperByName selects an escaper by output encoding name.
func EscaperByName(name string) (Escaper, bool) {
	e, ok := escapers[name]
	return e, ok
}

type escaperFunc struct {
	name string
	fn   func(string) string
}

func (e escaperFunc) Name() string           { return e.name }
func (e escaperFunc) Escape(s string) string { return e.fn(s) }

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func init() {
	RegisterEscaper(escaperFunc{"raw", func(s string) string { return s }})
	RegisterEscaper(escaperFunc{"html", htmlReplacer.Replace})
	RegisterEscaper(escaperFunc{"url", url.QueryEscape})
	RegisterEscaper(escaperFunc{"js", template.JSEscapeString})
}
