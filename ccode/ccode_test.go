package ccode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andreyvit/diff"

	"github.com/smarttpl/smarttpl/parse"
)

type genTest struct {
	name     string
	input    string
	expected string
}

const header = `// Generated from template %name%.
// Do not edit this file by hand.

#include <smarttpl/callbacks.h>
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>

void show_template(void *userdata) {
`

var genTests = []genTest{
	{"hello.tpl", "Hello {$name}!", `
    smart_tpl_write(userdata,"Hello ",6);
    smart_tpl_output(userdata,smart_tpl_variable(userdata,"name",4),1);
    smart_tpl_write(userdata,"!",1);
}`},

	{"if.tpl", "{if $a == 1}yes{else}no{/if}", `
    if ((smart_tpl_to_numeric(userdata,smart_tpl_variable(userdata,"a",1)) == 1LL)) {
        smart_tpl_write(userdata,"yes",3);
    } else {
        smart_tpl_write(userdata,"no",2);
    }
}`},

	{"strcmp.tpl", `{if "a" == "b"}t{/if}`, `
    if ((smart_tpl_strcmp(userdata,"a",1,"b",1) == 0)) {
        smart_tpl_write(userdata,"t",1);
    }
}`},

	{"foreach.tpl", "{foreach $m as $k => $v}{$k}={$v};{/foreach}", `
    {
        void *iterator = smart_tpl_create_iterator(userdata,smart_tpl_variable(userdata,"m",1));
        while (smart_tpl_valid_iterator(userdata,iterator)) {
            smart_tpl_assign(userdata,"k",1,smart_tpl_iterator_key(userdata,iterator));
            smart_tpl_assign(userdata,"v",1,smart_tpl_iterator_value(userdata,iterator));
            smart_tpl_output(userdata,smart_tpl_variable(userdata,"k",1),1);
            smart_tpl_write(userdata,"=",1);
            smart_tpl_output(userdata,smart_tpl_variable(userdata,"v",1),1);
            smart_tpl_write(userdata,";",1);
            smart_tpl_iterator_next(userdata,iterator);
        }
        smart_tpl_assign(userdata,"v",1,(void *)0);
        smart_tpl_assign(userdata,"k",1,(void *)0);
    }
}`},

	{"foreachelse.tpl", "{foreach $i in $l}x{foreachelse}e{/foreach}", `
    {
        void *iterator = smart_tpl_create_iterator(userdata,smart_tpl_variable(userdata,"l",1));
        if (smart_tpl_valid_iterator(userdata,iterator)) {
            while (smart_tpl_valid_iterator(userdata,iterator)) {
                smart_tpl_assign(userdata,"i",1,smart_tpl_iterator_value(userdata,iterator));
                smart_tpl_write(userdata,"x",1);
                smart_tpl_iterator_next(userdata,iterator);
            }
            smart_tpl_assign(userdata,"i",1,(void *)0);
        } else {
            smart_tpl_write(userdata,"e",1);
        }
    }
}`},

	{"assign.tpl", "{assign $v*11 to $t}{$t|toupper}", `
    smart_tpl_assign_numeric(userdata,"t",1,(smart_tpl_to_numeric(userdata,smart_tpl_variable(userdata,"v",1)) * 11LL));
    smart_tpl_output(userdata,smart_tpl_modify_variable(userdata,smart_tpl_modifier(userdata,"toupper",7),smart_tpl_variable(userdata,"t",1),(void *)0),1);
}`},

	{"numeric.tpl", "{1+2}", `
    {
        char buffer[32];
        int size = snprintf(buffer,sizeof(buffer),"%lld",(long long)((1LL + 2LL)));
        smart_tpl_write(userdata,buffer,size);
    }
}`},

	{"double-assign.tpl", "{assign 1.5e17 to $t}", `
    {
        char buffer[64];
        int size = snprintf(buffer,sizeof(buffer),"%.6f",1.5e+17);
        smart_tpl_assign_string(userdata,"t",1,buffer,size);
    }
}`},

	{"modifier-params.tpl", `{$s|truncate:5,".."}`, `
    smart_tpl_output(userdata,smart_tpl_modify_variable(userdata,smart_tpl_modifier(userdata,"truncate",8),smart_tpl_variable(userdata,"s",1),smart_tpl_params_append_string(userdata,smart_tpl_params_append_numeric(userdata,smart_tpl_create_params(userdata),5LL),"..",2)),1);
}`},

	{"escape-off.tpl", "{$s|raw}", `
    smart_tpl_output(userdata,smart_tpl_variable(userdata,"s",1),0);
}`},

	{"raw-escapes.tpl", "a\"b\n", `
    smart_tpl_write(userdata,"a\"b\n",4);
}`},
}

func TestGenerate(t *testing.T) {
	for _, test := range genTests {
		tree, err := parse.Parse(test.name, test.input)
		if err != nil {
			t.Errorf("%s: parse error: %v", test.name, err)
			continue
		}
		var buf bytes.Buffer
		if err := Generate(&buf, tree); err != nil {
			t.Errorf("%s: generate error: %v", test.name, err)
			continue
		}
		var expected = strings.Replace(header, "%name%", test.name, 1) +
			strings.TrimPrefix(test.expected, "\n") + "\n"
		if got := buf.String(); got != expected {
			t.Errorf("%s: output mismatch:\n%v", test.name, diff.LineDiff(expected, got))
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	var tests = []struct {
		name  string
		input string
	}{
		{"mixed compare", `{if "a" == 1}t{/if}`},
		{"string ordering", `{if "a" < "b"}t{/if}`},
	}
	for _, test := range tests {
		tree, err := parse.Parse(test.name, test.input)
		if err != nil {
			t.Errorf("%s: parse error: %v", test.name, err)
			continue
		}
		var buf bytes.Buffer
		if err := Generate(&buf, tree); err == nil {
			t.Errorf("%s: expected an emit error", test.name)
		}
	}
}

func TestCString(t *testing.T) {
	var tests = []struct{ input, expected string }{
		{"abc", `"abc"`},
		{`a"b`, `"a\"b"`},
		{"a\\b", `"a\\b"`},
		{"a\nb\tc\r", `"a\nb\tc\r"`},
		{"bell\x07", `"bell\007"`},
	}
	for _, test := range tests {
		if got := cstring(test.input); got != test.expected {
			t.Errorf("cstring(%q): got %s, expected %s", test.input, got, test.expected)
		}
	}
}
