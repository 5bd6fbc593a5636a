// Package smarttpl is a template engine for the Smarty-like template
// dialect.  A template source is parsed into a syntax tree and compiled
// for the in-memory VM backend; the same tree can also be translated
// into C or JavaScript source built on the engine's callback ABI, and a
// JavaScript translation can be loaded back later as an alternative
// executor.
package smarttpl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/smarttpl/smarttpl/ast"
	"github.com/smarttpl/smarttpl/bytecode"
	"github.com/smarttpl/smarttpl/ccode"
	"github.com/smarttpl/smarttpl/data"
	"github.com/smarttpl/smarttpl/jscode"
	"github.com/smarttpl/smarttpl/parse"
	"github.com/smarttpl/smarttpl/runtime"

	// register the builtin modifier set
	_ "github.com/smarttpl/smarttpl/modifiers"
)

// Executor is a compiled template: either a VM program or a loaded
// translation.  Executors are read-only and may be shared between
// goroutines; each render gets its own Handler.
type Executor interface {
	Execute(h *runtime.Handler) error
}

// Template is a compiled template plus the syntax tree it came from.
type Template struct {
	name string
	tree *ast.SyntaxTree // nil for loaded programs
	exec Executor
}

// New compiles a template from source.  Lexing, parsing and emit
// failures are returned as compile errors.
func New(name, source string) (*Template, error) {
	tree, err := parse.Parse(name, source)
	if err != nil {
		return nil, err
	}
	prog, err := bytecode.Compile(tree)
	if err != nil {
		return nil, err
	}
	return &Template{name: name, tree: tree, exec: prog}, nil
}

// NewFile compiles a template read from a file.
func NewFile(path string) (*Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(filepath.Base(path), string(content))
}

// LoadJS wraps a previously generated JavaScript translation as a
// template, the way a compiled shared object is re-loaded.
func LoadJS(name, source string) *Template {
	return &Template{name: name, exec: jscode.Load(name, source)}
}

// Name returns the name the template was compiled under.
func (t *Template) Name() string { return t.name }

// Process renders the template against the given data and returns the
// output.  The optional encoding selects the output escaper ("raw" when
// omitted); values printed with escaping enabled pass through it.  A nil
// Data renders against an empty binding.  On a runtime failure the
// partial output is discarded and the error returned.
func (t *Template) Process(d *data.Data, encoding ...string) (string, error) {
	var enc = "raw"
	if len(encoding) > 0 {
		enc = encoding[0]
	}
	escaper, ok := runtime.EscaperByName(enc)
	if !ok {
		return "", fmt.Errorf("unknown output encoding %q", enc)
	}
	var h = runtime.NewHandler(d, escaper)
	if err := t.exec.Execute(h); err != nil {
		return "", err
	}
	if h.Failed() {
		return "", h.Err()
	}
	return h.Output(), nil
}

// CompileToC writes the C rendition of the template, ready to be built
// against the callback ABI header into a shared library.
func (t *Template) CompileToC(w io.Writer) error {
	if t.tree == nil {
		return fmt.Errorf("template %s: loaded programs cannot be re-translated", t.name)
	}
	return ccode.Generate(w, t.tree)
}

// CompileToJS writes the JavaScript rendition of the template.  The
// result can be handed back to LoadJS.
func (t *Template) CompileToJS(w io.Writer) error {
	if t.tree == nil {
		return fmt.Errorf("template %s: loaded programs cannot be re-translated", t.name)
	}
	return jscode.Generate(w, t.tree)
}
