package smarttpl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smarttpl/smarttpl/data"
	"github.com/smarttpl/smarttpl/errortypes"
)

func TestProcessBasics(t *testing.T) {
	tpl, err := New("hello.tpl", "Hello {$name}!")
	if err != nil {
		t.Fatal(err)
	}
	out, err := tpl.Process(data.NewData().Assign("name", "Rob"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello Rob!" {
		t.Errorf("got %q", out)
	}

	// nil data renders against an empty binding
	out, err = tpl.Process(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello !" {
		t.Errorf("got %q", out)
	}
}

func TestRawTextPassthrough(t *testing.T) {
	var source = "no directives here.\n  } \t stray braces and spaces survive\n"
	tpl, err := New("raw.tpl", source)
	if err != nil {
		t.Fatal(err)
	}
	out, err := tpl.Process(data.NewData().Assign("unused", 1))
	if err != nil {
		t.Fatal(err)
	}
	if out != source {
		t.Errorf("raw text must pass through verbatim:\ngot      %q\nexpected %q", out, source)
	}
}

func TestProcessIdempotent(t *testing.T) {
	tpl, err := New("idem.tpl", "{foreach $i in $l}{$i};{/foreach}")
	if err != nil {
		t.Fatal(err)
	}
	var d = data.NewData().Assign("l", []int{1, 2, 3})
	first, err := tpl.Process(d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tpl.Process(d)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("renders differ: %q vs %q", first, second)
	}
}

func TestOutputEncodings(t *testing.T) {
	tpl, err := New("esc.tpl", "{$x}")
	if err != nil {
		t.Fatal(err)
	}
	var d = data.NewData().Assign("x", `<b>"&`)

	raw, err := tpl.Process(d)
	if err != nil {
		t.Fatal(err)
	}
	if raw != `<b>"&` {
		t.Errorf("raw: got %q", raw)
	}

	html, err := tpl.Process(d, "html")
	if err != nil {
		t.Fatal(err)
	}
	if html != "&lt;b&gt;&quot;&amp;" {
		t.Errorf("html: got %q", html)
	}

	if _, err := tpl.Process(d, "no-such-encoding"); err == nil {
		t.Error("unknown encodings are an error")
	}
}

func TestCompileError(t *testing.T) {
	_, err := New("bad.tpl", "{if $a}never closed")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errortypes.IsCompileError(err) {
		t.Errorf("expected a compile error, got %T: %v", err, err)
	}
}

func TestRuntimeErrorDiscardsOutput(t *testing.T) {
	tpl, err := New("boom.tpl", "partial output{1/0}")
	if err != nil {
		t.Fatal(err)
	}
	out, err := tpl.Process(nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errortypes.IsRuntimeError(err) {
		t.Errorf("expected a runtime error, got %T: %v", err, err)
	}
	if out != "" {
		t.Errorf("failed renders discard their output, got %q", out)
	}
}

func TestBuiltinModifiersAreRegistered(t *testing.T) {
	tpl, err := New("mod.tpl", "{$s|toupper} {$s|sha1}")
	if err != nil {
		t.Fatal(err)
	}
	out, err := tpl.Process(data.NewData().Assign("s", "abc"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "ABC a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("got %q", out)
	}
}

func TestNewFile(t *testing.T) {
	var dir = t.TempDir()
	var path = filepath.Join(dir, "file.tpl")
	if err := os.WriteFile(path, []byte("n={$n}"), 0644); err != nil {
		t.Fatal(err)
	}
	tpl, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Name() != "file.tpl" {
		t.Errorf("name %q", tpl.Name())
	}
	out, err := tpl.Process(data.NewData().Assign("n", 1))
	if err != nil {
		t.Fatal(err)
	}
	if out != "n=1" {
		t.Errorf("got %q", out)
	}

	if _, err := NewFile(filepath.Join(dir, "missing.tpl")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestCompileToCAndJS(t *testing.T) {
	tpl, err := New("gen.tpl", "Hello {$name}!")
	if err != nil {
		t.Fatal(err)
	}

	var cbuf bytes.Buffer
	if err := tpl.CompileToC(&cbuf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cbuf.String(), "void show_template(void *userdata)") {
		t.Errorf("C output missing entry point:\n%s", cbuf.String())
	}

	var jsbuf bytes.Buffer
	if err := tpl.CompileToJS(&jsbuf); err != nil {
		t.Fatal(err)
	}

	// the JS translation can be loaded back as an alternative executor
	// and must produce the same output as the original
	var loaded = LoadJS("gen.tpl", jsbuf.String())
	var d = data.NewData().Assign("name", "Rob")
	want, err := tpl.Process(d)
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Process(d)
	if err != nil {
		t.Fatal(err)
	}
	if want != got {
		t.Errorf("executors disagree: %q vs %q", want, got)
	}

	// a loaded program has no tree to re-translate
	if err := loaded.CompileToC(&cbuf); err == nil {
		t.Error("expected error re-translating a loaded program")
	}
}

func TestBundle(t *testing.T) {
	var dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.tpl"), []byte("A={$x}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "globals.yaml"),
		[]byte("site: example\nversion: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	registry, err := NewBundle().
		AddTemplateDir(dir).
		AddTemplateString("b.tpl", "B={$site} v{$version}").
		AddGlobalsFile(filepath.Join(dir, "globals.yaml")).
		Compile()
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := registry.Template("ignored.txt"); ok {
		t.Error("non-template files are not collected")
	}

	a, ok := registry.Template(filepath.Join(dir, "a.tpl"))
	if !ok {
		t.Fatal("a.tpl not in registry")
	}
	out, err := a.Process(registry.NewData().Assign("x", 7))
	if err != nil {
		t.Fatal(err)
	}
	if out != "A=7" {
		t.Errorf("got %q", out)
	}

	b, _ := registry.Template("b.tpl")
	out, err = b.Process(registry.NewData())
	if err != nil {
		t.Fatal(err)
	}
	if out != "B=example v3" {
		t.Errorf("globals did not reach the render: %q", out)
	}
}

func TestBundleDuplicateGlobal(t *testing.T) {
	_, err := NewBundle().
		AddGlobalsMap(map[string]interface{}{"a": 1}).
		AddGlobalsMap(map[string]interface{}{"a": 2}).
		Compile()
	if err == nil {
		t.Error("expected duplicate global error")
	}
}

func TestBundleWatchRecompiles(t *testing.T) {
	var dir = t.TempDir()
	var path = filepath.Join(dir, "w.tpl")
	if err := os.WriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatal(err)
	}

	var recompiled = make(chan *Registry, 1)
	registry, err := NewBundle().
		WatchFiles(true).
		AddTemplateFile(path).
		SetRecompilationCallback(func(r *Registry) {
			select {
			case recompiled <- r:
			default:
			}
		}).
		Compile()
	if err != nil {
		t.Fatal(err)
	}
	tpl, _ := registry.Template(path)
	if out, _ := tpl.Process(nil); out != "one" {
		t.Fatalf("got %q", out)
	}

	if err := os.WriteFile(path, []byte("two"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-recompiled:
		tpl, _ := r.Template(path)
		if out, _ := tpl.Process(nil); out != "two" {
			t.Errorf("recompiled template renders %q", out)
		}
	case <-time.After(5 * time.Second):
		t.Skip("no filesystem notification received; watcher unsupported here")
	}
}

func TestConcurrentRenders(t *testing.T) {
	tpl, err := New("conc.tpl", "{foreach $i in $l}{$i*$i};{/foreach}")
	if err != nil {
		t.Fatal(err)
	}
	var done = make(chan error, 8)
	for g := 0; g < 8; g++ {
		go func() {
			for i := 0; i < 50; i++ {
				out, err := tpl.Process(data.NewData().Assign("l", []int{1, 2, 3}))
				if err == nil && out != "1;4;9;" {
					err = errors.New("got " + out)
				}
				if err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	for g := 0; g < 8; g++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
