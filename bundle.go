package smarttpl

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/smarttpl/smarttpl/data"
)

// Logger receives notifications and compile failures from the WatchFiles
// feature.
var Logger = log.New(os.Stderr, "[smarttpl] ", 0)

// templateFile is one template queued for compilation.  Templates added
// from disk are re-read on recompilation; templates added as strings
// keep their original content.
type templateFile struct {
	name     string
	content  string
	fromDisk bool
}

// Bundle collects template files and globals for compilation into a
// Registry.
type Bundle struct {
	files    []templateFile
	globals  map[string]interface{}
	watcher  *fsnotify.Watcher
	onReload func(*Registry)
	err      error // first setup failure; reported by Compile
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{globals: make(map[string]interface{})}
}

// WatchFiles arms filesystem watching for every template file added
// after this call.  When a watched file changes, the whole bundle is
// recompiled and the live registry updated in place.
func (b *Bundle) WatchFiles(watch bool) *Bundle {
	if watch && b.err == nil && b.watcher == nil {
		b.watcher, b.err = fsnotify.NewWatcher()
	}
	return b
}

// AddTemplateDir adds every *.tpl file under root, sub-directories
// included.
func (b *Bundle) AddTemplateDir(root string) *Bundle {
	var err = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() || !strings.HasSuffix(path, ".tpl") {
			return err
		}
		b.AddTemplateFile(path)
		return nil
	})
	if err != nil {
		b.err = err
	}
	return b
}

// AddTemplateFile adds one template file, and a watch on it when
// WatchFiles is armed.
func (b *Bundle) AddTemplateFile(filename string) *Bundle {
	content, err := os.ReadFile(filename)
	if err != nil {
		b.err = err
		return b
	}
	if b.watcher != nil {
		if err := b.watcher.Add(filename); err != nil {
			b.err = err
			return b
		}
	}
	b.files = append(b.files, templateFile{filename, string(content), true})
	return b
}

// AddTemplateString adds a template held in memory.  The name is used
// for error messages and registry lookup; it need not be a filename.
func (b *Bundle) AddTemplateString(name, content string) *Bundle {
	b.files = append(b.files, templateFile{name, content, false})
	return b
}

// AddGlobalsFile reads a YAML mapping and merges it into the bundle's
// globals.
func (b *Bundle) AddGlobalsFile(filename string) *Bundle {
	content, err := os.ReadFile(filename)
	if err != nil {
		b.err = err
		return b
	}
	var globals map[string]interface{}
	if err := yaml.Unmarshal(content, &globals); err != nil {
		b.err = err
		return b
	}
	return b.AddGlobalsMap(globals)
}

// AddGlobalsMap merges globals into the bundle.  Redefining a name is
// an error.
func (b *Bundle) AddGlobalsMap(globals map[string]interface{}) *Bundle {
	for name, value := range globals {
		if _, taken := b.globals[name]; taken {
			b.err = fmt.Errorf("global %q already defined", name)
			return b
		}
		b.globals[name] = value
	}
	return b
}

// SetRecompilationCallback registers a function invoked with each
// freshly compiled registry, before the live one is updated.
func (b *Bundle) SetRecompilationCallback(c func(*Registry)) *Bundle {
	b.onReload = c
	return b
}

// Compile builds every template in the bundle and returns the registry.
// With WatchFiles armed, a watch goroutine keeps the returned registry
// current as the underlying files change.
func (b *Bundle) Compile() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	var reg, err = b.build()
	if err != nil {
		return nil, err
	}
	if b.watcher != nil {
		go b.watch(reg)
	}
	return reg, nil
}

// build compiles the bundle's current contents into a fresh registry.
// Disk-backed templates are re-read so a rebuild picks up edits.
func (b *Bundle) build() (*Registry, error) {
	var reg = &Registry{
		templates: make(map[string]*Template, len(b.files)),
		globals:   b.globals,
	}
	for _, file := range b.files {
		var content = file.content
		if file.fromDisk {
			var raw, err = os.ReadFile(file.name)
			if err != nil {
				return nil, err
			}
			content = string(raw)
		}
		tpl, err := New(file.name, content)
		if err != nil {
			return nil, err
		}
		reg.templates[file.name] = tpl
	}
	return reg, nil
}

// watch reacts to filesystem events by rebuilding the bundle and
// swapping the result into the live registry.  A bad edit logs the
// compile error and leaves the previous registry serving.
func (b *Bundle) watch(live *Registry) {
	for {
		select {
		case ev, open := <-b.watcher.Events:
			if !open {
				return
			}
			// an editor that saves by rename drops the watch with the
			// old inode; give the new file a moment and re-arm
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(10 * time.Millisecond)
				if err := b.watcher.Add(ev.Name); err != nil {
					Logger.Printf("cannot re-watch %s: %v", ev.Name, err)
					continue
				}
			}
			fresh, err := b.build()
			if err != nil {
				Logger.Printf("recompile failed, keeping previous templates: %v", err)
				continue
			}
			if b.onReload != nil {
				b.onReload(fresh)
			}
			// replacing the struct contents updates every holder of the
			// registry pointer; a render already underway finishes on
			// the templates it resolved
			*live = *fresh
			Logger.Printf("recompiled after %v", ev)

		case err, open := <-b.watcher.Errors:
			if !open {
				return
			}
			Logger.Printf("watch: %v", err)
		}
	}
}

// Registry is a compiled bundle: templates by the name they were added
// under, plus the globals every render starts from.
type Registry struct {
	templates map[string]*Template
	globals   map[string]interface{}
}

// Template looks a compiled template up by name.
func (r *Registry) Template(name string) (*Template, bool) {
	tpl, ok := r.templates[name]
	return tpl, ok
}

// NewData returns a data object pre-populated with the bundle's globals.
func (r *Registry) NewData() *data.Data {
	var d = data.NewData()
	for name, value := range r.globals {
		d.Assign(name, value)
	}
	return d
}
