package bytecode

import (
	"strings"
	"testing"

	"github.com/smarttpl/smarttpl/data"
	"github.com/smarttpl/smarttpl/errortypes"
	"github.com/smarttpl/smarttpl/parse"
	"github.com/smarttpl/smarttpl/runtime"

	_ "github.com/smarttpl/smarttpl/modifiers"
)

type execTest struct {
	name   string
	input  string
	output string
	data   *data.Data
	ok     bool
}

func listData(name string, items ...interface{}) *data.Data {
	return data.NewData().Assign(name, items)
}

func run(t *testing.T, test execTest) {
	t.Helper()
	tree, err := parse.Parse(test.name, test.input)
	if err != nil {
		t.Errorf("%s: parse error: %v", test.name, err)
		return
	}
	prog, err := Compile(tree)
	if err != nil {
		t.Errorf("%s: compile error: %v", test.name, err)
		return
	}
	escaper, _ := runtime.EscaperByName("raw")
	var h = runtime.NewHandler(test.data, escaper)
	err = prog.Execute(h)
	switch {
	case err != nil && test.ok:
		t.Errorf("%s: unexpected render error: %v", test.name, err)
	case err == nil && !test.ok:
		t.Errorf("%s: expected error, got %q", test.name, h.Output())
	case err != nil && !test.ok && !errortypes.IsRuntimeError(err):
		t.Errorf("%s: expected a runtime error, got %T: %v", test.name, err, err)
	case test.ok && h.Output() != test.output:
		t.Errorf("%s: got %q, expected %q", test.name, h.Output(), test.output)
	}
}

func runExecTests(t *testing.T, tests []execTest) {
	t.Helper()
	for _, test := range tests {
		run(t, test)
	}
}

func TestRawText(t *testing.T) {
	runExecTests(t, []execTest{
		{"empty", "", "", nil, true},
		{"plain", "Hello world!", "Hello world!", nil, true},
		{"whitespace preserved", " a \n\tb ", " a \n\tb ", nil, true},
		{"close brace", "a } b", "a } b", nil, true},
	})
}

func TestVariables(t *testing.T) {
	runExecTests(t, []execTest{
		{"string variable", "Hello {$name}!", "Hello Rob!",
			data.NewData().Assign("name", "Rob"), true},
		{"missing variable is empty", "[{$does_not_exist}]", "[]", nil, true},
		{"member by name", "{$a.b}", "x",
			data.NewData().Assign("a", map[string]interface{}{"b": "x"}), true},
		{"member by index", "{$list[3]}", "3", listData("list", 0, 1, 2, 3, 4), true},
		{"member by string key", `{$map["key"]}`, "test",
			data.NewData().Assign("map", map[string]interface{}{"key": "test"}), true},
		{"member by variable index", "{$list[$i]}", "2",
			listData("list", 0, 1, 2, 3).Assign("i", 2), true},
		{"missing member is empty", "[{$a.nope}]", "[]",
			data.NewData().Assign("a", map[string]interface{}{"b": 1}), true},
		{"numeric output", "{$n}", "42", data.NewData().Assign("n", 42), true},
		{"double output", "{$f}", "2.500000", data.NewData().Assign("f", 2.5), true},
		{"boolean output", "{$b}", "true", data.NewData().Assign("b", true), true},
	})
}

func TestArithmetic(t *testing.T) {
	runExecTests(t, []execTest{
		{"precedence", "{1+3-2*10}", "-16", nil, true},
		{"parens", "{(1+3-2)*10}", "20", nil, true},
		{"mod", "{1+3*10%5}", "1", nil, true},
		{"variable times literal", "{10*$var}", "2000",
			data.NewData().Assign("var", 200), true},
		{"variable times literal 2", "{10*$var}", "220",
			data.NewData().Assign("var", 22), true},
		{"variable squared", "{$var*$var}", "484",
			data.NewData().Assign("var", 22), true},
		{"negative literal", "{-16}", "-16", nil, true},
		{"unary minus", "{-$n}", "-5", data.NewData().Assign("n", 5), true},
		{"double arithmetic", "{1.5*2.0}", "3.000000", nil, true},
		{"string coerces numerically", "{10*$s}", "30",
			data.NewData().Assign("s", "3"), true},
		{"division by zero", "{1/0}", "", nil, false},
		{"modulo by zero", "{1%0}", "", nil, false},
		{"division by zero variable", "{1/$zero}", "",
			data.NewData().Assign("zero", 0), false},
	})
}

func TestControlFlow(t *testing.T) {
	runExecTests(t, []execTest{
		{"if true", "{if true}T{else}F{/if}", "T", nil, true},
		{"if false", "{if false}T{else}F{/if}", "F", nil, true},
		{"if no else", "{if false}T{/if}", "", nil, true},
		{"elseif none", "{if $v}T{elseif $w}F{/if}", "", nil, true},
		{"elseif first", "{if $v}T{elseif $w}F{/if}", "T",
			data.NewData().Assign("v", true), true},
		{"elseif second", "{if $v}T{elseif $w}F{/if}", "F",
			data.NewData().Assign("w", true), true},
		{"truthiness of missing", "{if $nope}T{else}F{/if}", "F", nil, true},
		{"truthiness of zero", "{if $z}T{else}F{/if}", "F",
			data.NewData().Assign("z", 0), true},
		{"truthiness of string", "{if $s}T{else}F{/if}", "T",
			data.NewData().Assign("s", "x"), true},
		{"not", "{if !$nope}T{else}F{/if}", "T", nil, true},
		{"and", "{if true && false}T{else}F{/if}", "F", nil, true},
		{"or", "{if false || true}T{else}F{/if}", "T", nil, true},
		{"arithmetic condition", "{if 1+1}T{else}F{/if}", "T", nil, true},
	})
}

func TestForeach(t *testing.T) {
	var mapData = func() *data.Data {
		return data.NewData().Assign("m", data.NewMap().Set("1", 1).Set("2", 2))
	}
	runExecTests(t, []execTest{
		{"list", "{foreach $i in $l}item: {$i}\n{/foreach}",
			"item: 0\nitem: 1\nitem: 2\nitem: 3\nitem: 4\n",
			listData("l", 0, 1, 2, 3, 4), true},
		{"as form", "{foreach $l as $i}{$i};{/foreach}", "0;1;2;",
			listData("l", 0, 1, 2), true},
		{"keys", "{foreach $m as $k => $v}k:{$k},v:{$v};{/foreach}",
			"k:1,v:1;k:2,v:2;", mapData(), true},
		{"empty source runs else", "{foreach $i in $l}x{foreachelse}else{/foreach}",
			"else", data.NewData().Assign("l", []int{}), true},
		{"non-iterable source runs else", "{foreach $i in $src}..{foreachelse}else{/foreach}",
			"else", data.NewData().Assign("src", "a string"), true},
		{"missing source runs else", "{foreach $i in $nope}x{foreachelse}else{/foreach}",
			"else", nil, true},
		{"non-iterable without else is a no-op", "a{foreach $i in $src}x{/foreach}b", "ab",
			data.NewData().Assign("src", "str"), true},
		{"induction variable is removed", "{foreach $i in $l}{$i}{/foreach}[{$i}]", "01[]",
			listData("l", 0, 1), true},
		{"induction variable shadows data", "{foreach $i in $l}{$i}{/foreach}{$i}", "01outer",
			listData("l", 0, 1).Assign("i", "outer"), true},
		{"nested", "{foreach $a in $l}{foreach $b in $l}{$a}{$b},{/foreach};{/foreach}",
			"00,01,;10,11,;", listData("l", 0, 1), true},
	})
}

func TestAssignment(t *testing.T) {
	runExecTests(t, []execTest{
		{"read assign read", "{$v}-{$v=1}-{$v}", "--1", nil, true},
		{"assign persists after foreach", "{foreach $i in $l}{$o=$i}{/foreach}{$o}", "4",
			listData("l", 0, 1, 2, 3, 4), true},
		{"assign to", "{assign $v*11 to $t}{$t}", "5016",
			data.NewData().Assign("v", 456), true},
		{"assign double", "{assign 1.5e17 to $t}{$t}", "150000000000000000.000000", nil, true},
		{"assign string", `{assign "hi" to $t}{$t}`, "hi", nil, true},
		{"assign boolean", "{assign true to $t}{$t}", "true", nil, true},
		{"assign variable", "{assign $src to $t}{$t}", "x",
			data.NewData().Assign("src", "x"), true},
		{"assign shadows data", "{$v=1}{$v}", "1",
			data.NewData().Assign("v", 99), true},
		{"assign expression of locals", "{$a=3}{$b=$a*$a}{$b}", "9", nil, true},
	})
}

func TestComparison(t *testing.T) {
	runExecTests(t, []execTest{
		{"strings equal", `{if "a" == "b"}t{else}f{/if}`, "f", nil, true},
		{"strings not equal", `{if "a" != "b"}t{else}f{/if}`, "t", nil, true},
		{"string variable", `{if $s == "abc"}t{else}f{/if}`, "t",
			data.NewData().Assign("s", "abc"), true},
		{"numeric equal", "{if $var == 1}t{else}f{/if}", "t",
			data.NewData().Assign("var", 1), true},
		{"numeric not equal", "{if $var == 1}t{else}f{/if}", "f",
			data.NewData().Assign("var", 2), true},
		{"int64 range", "{if $int64 > 2147483647}t{else}f{/if}", "t",
			data.NewData().Assign("int64", int64(922337203685477580)), true},
		{"boolean comparison", "{if true == true}t{else}f{/if}", "t", nil, true},
		{"boolean variable comparison", "{if $b == true}t{else}f{/if}", "t",
			data.NewData().Assign("b", true), true},
		{"ordering", "{if 3 >= 3}t{else}f{/if}", "t", nil, true},
		{"double ordering", "{if 1.5 < 2}t{else}f{/if}", "t", nil, true},
		{"value vs value", "{if $a == $b}t{else}f{/if}", "t",
			data.NewData().Assign("a", 7).Assign("b", 7), true},
	})
}

func TestCompileErrors(t *testing.T) {
	var tests = []struct {
		name  string
		input string
	}{
		{"string vs numeric", `{if "a" == 1}t{/if}`},
		{"boolean vs string", `{if true == "x"}t{/if}`},
		{"string ordering", `{if "a" < "b"}t{/if}`},
		{"boolean index", "{$l[true]}"},
	}
	for _, test := range tests {
		tree, err := parse.Parse(test.name, test.input)
		if err != nil {
			t.Errorf("%s: parse error: %v", test.name, err)
			continue
		}
		_, err = Compile(tree)
		if err == nil {
			t.Errorf("%s: expected a compile error", test.name)
			continue
		}
		if !errortypes.IsCompileError(err) {
			t.Errorf("%s: expected a compile error, got %T: %v", test.name, err, err)
		}
	}
}

func TestModifierPipes(t *testing.T) {
	runExecTests(t, []execTest{
		{"tolower", "{$s|tolower}", "abc", data.NewData().Assign("s", "ABC"), true},
		{"chain", "{$s|tolower|toupper}", "ABC", data.NewData().Assign("s", "aBc"), true},
		{"count", "{$l|count}", "3", listData("l", 1, 2, 3), true},
		{"count_paragraphs", "{$s|count_paragraphs}", "2",
			data.NewData().Assign("s", "a\nb\nc"), true},
		{"truncate with params", `{$s|truncate:5,".."}`, "abc..",
			data.NewData().Assign("s", "abcdefgh"), true},
		{"default", `{$nope|default:"d"}`, "d", nil, true},
		{"raw cancels escaping only", "{$s|raw}", "<b>",
			data.NewData().Assign("s", "<b>"), true},
		{"unknown modifier fails", "{$s|no_such_mod}", "",
			data.NewData().Assign("s", "x"), false},
	})
}

func TestCustomModifier(t *testing.T) {
	var d = data.NewData().Assign("s", "x").
		ModifierFunc("wrap", func(in data.Value, params data.Parameters) data.Value {
			return data.String("[" + in.String() + "]")
		})
	run(t, execTest{"custom modifier", "{$s|wrap}", "[x]", d, true})
}

func TestShortCircuit(t *testing.T) {
	var evaluated int
	var touch = data.ModifierFunc(func(in data.Value, _ data.Parameters) data.Value {
		evaluated++
		return in
	})

	var cases = []struct {
		input  string
		output string
		calls  int
	}{
		{"{if $no && $s|touch}T{else}F{/if}", "F", 0}, // left decides; right never runs
		{"{if $yes && $s|touch}T{else}F{/if}", "T", 1},
		{"{if $yes || $s|touch}T{else}F{/if}", "T", 0},
		{"{if $no || $s|touch}T{else}F{/if}", "T", 1},
	}
	for _, c := range cases {
		evaluated = 0
		var d = data.NewData().
			Assign("yes", true).
			Assign("s", "x").
			Modifier("touch", touch)
		run(t, execTest{"short circuit", c.input, c.output, d, true})
		if evaluated != c.calls {
			t.Errorf("%s: side effect ran %d times, expected %d", c.input, evaluated, c.calls)
		}
	}
}

func TestIdempotentRender(t *testing.T) {
	tree, err := parse.Parse("idem", "{foreach $i in $l}{$i*2};{/foreach}")
	if err != nil {
		t.Fatal(err)
	}
	prog, err := Compile(tree)
	if err != nil {
		t.Fatal(err)
	}
	escaper, _ := runtime.EscaperByName("raw")
	var outputs []string
	for i := 0; i < 2; i++ {
		var h = runtime.NewHandler(listData("l", 1, 2, 3), escaper)
		if err := prog.Execute(h); err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, h.Output())
	}
	if outputs[0] != outputs[1] || outputs[0] != "2;4;6;" {
		t.Errorf("renders differ: %q vs %q", outputs[0], outputs[1])
	}
}

func TestErrorAbortsRender(t *testing.T) {
	tree, _ := parse.Parse("abort", "before{1/0}after")
	prog, err := Compile(tree)
	if err != nil {
		t.Fatal(err)
	}
	escaper, _ := runtime.EscaperByName("raw")
	var h = runtime.NewHandler(nil, escaper)
	if err := prog.Execute(h); err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(h.Output(), "after") {
		t.Errorf("render continued past the failure: %q", h.Output())
	}
}

func TestProgramString(t *testing.T) {
	tree, _ := parse.Parse("listing", "a{$b}")
	prog, err := Compile(tree)
	if err != nil {
		t.Fatal(err)
	}
	var listing = prog.String()
	for _, want := range []string{"RawText", "LookupVar", "OutputVal", "Return"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %s:\n%s", want, listing)
		}
	}
}
