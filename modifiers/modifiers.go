// Package modifiers holds the builtin modifier set.  The modifiers are
// registered in the process-wide registry during init; importing this
// package (the facade does so) makes them available to every Data.
package modifiers

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/smarttpl/smarttpl/data"
)

func init() {
	var builtins = map[string]func(data.Value, data.Parameters) data.Value{
		"count":            count,
		"count_characters": countCharacters,
		"count_paragraphs": countParagraphs,
		"count_words":      countWords,
		"tolower":          tolower,
		"toupper":          toupper,
		"capitalize":       capitalize,
		"ucfirst":          ucfirst,
		"trim":             trim,
		"nl2br":            nl2br,
		"truncate":         truncate,
		"default":          defaultValue,
		"replace":          replace,
		"cat":              cat,
		"sha1":             sha1Sum,
		"md5":              md5Sum,
		"base64_encode":    base64Encode,
		"base64_decode":    base64Decode,
		"urlencode":        urlencode,
		"markdown":         markdown,
	}
	for name, fn := range builtins {
		data.RegisterBuiltinModifier(name, data.ModifierFunc(fn))
	}
}

// count returns the number of members of the input.
func count(input data.Value, _ data.Parameters) data.Value {
	return data.Numeric(input.MemberCount())
}

// countCharacters returns the number of characters of the string form.
func countCharacters(input data.Value, _ data.Parameters) data.Value {
	return data.Numeric(utf8.RuneCountInString(input.String()))
}

// countParagraphs counts the newline and carriage return characters.
func countParagraphs(input data.Value, _ data.Parameters) data.Value {
	var n int64
	for _, b := range []byte(input.String()) {
		if b == '\n' || b == '\r' {
			n++
		}
	}
	return data.Numeric(n)
}

// countWords returns the number of whitespace-separated words.
func countWords(input data.Value, _ data.Parameters) data.Value {
	return data.Numeric(len(strings.Fields(input.String())))
}

func tolower(input data.Value, _ data.Parameters) data.Value {
	return data.String(strings.ToLower(input.String()))
}

func toupper(input data.Value, _ data.Parameters) data.Value {
	return data.String(strings.ToUpper(input.String()))
}

// capitalize title-cases every word.
func capitalize(input data.Value, _ data.Parameters) data.Value {
	return data.String(cases.Title(language.Und, cases.NoLower).String(input.String()))
}

// ucfirst upper-cases the first character only.
func ucfirst(input data.Value, _ data.Parameters) data.Value {
	var s = input.String()
	if s == "" {
		return input
	}
	r, size := utf8.DecodeRuneInString(s)
	return data.String(string(unicode.ToUpper(r)) + s[size:])
}

// trim removes surrounding whitespace, or the characters given as the
// first parameter.
func trim(input data.Value, params data.Parameters) data.Value {
	if cutset := params.StringAt(0, ""); cutset != "" {
		return data.String(strings.Trim(input.String(), cutset))
	}
	return data.String(strings.TrimSpace(input.String()))
}

var newlinePattern = regexp.MustCompile(`\r\n|\r|\n`)

// nl2br replaces line breaks with <br /> tags.
func nl2br(input data.Value, _ data.Parameters) data.Value {
	return data.String(newlinePattern.ReplaceAllString(input.String(), "<br />"))
}

// truncate shortens the string form to the length given as the first
// parameter (default 80), appending the suffix given as the second
// parameter (default "...").
func truncate(input data.Value, params data.Parameters) data.Value {
	var maxLen = int(params.NumericAt(0, 80))
	var suffix = params.StringAt(1, "...")
	var s = input.String()
	if len(s) <= maxLen {
		return input
	}
	if maxLen > len(suffix) {
		maxLen -= len(suffix)
	} else {
		suffix = ""
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return data.String(s[:maxLen] + suffix)
}

// defaultValue substitutes the first parameter when the input is empty.
func defaultValue(input data.Value, params data.Parameters) data.Value {
	if input.Size() == 0 {
		return params.At(0)
	}
	return input
}

// replace substitutes every occurrence of the first parameter with the
// second.
func replace(input data.Value, params data.Parameters) data.Value {
	return data.String(strings.ReplaceAll(
		input.String(), params.StringAt(0, ""), params.StringAt(1, "")))
}

// cat appends the parameters to the string form.
func cat(input data.Value, params data.Parameters) data.Value {
	var b strings.Builder
	b.WriteString(input.String())
	for i := 0; i < len(params); i++ {
		b.WriteString(params[i].String())
	}
	return data.String(b.String())
}

func sha1Sum(input data.Value, _ data.Parameters) data.Value {
	var digest = sha1.Sum([]byte(input.String()))
	return data.String(hex.EncodeToString(digest[:]))
}

func md5Sum(input data.Value, _ data.Parameters) data.Value {
	var digest = md5.Sum([]byte(input.String()))
	return data.String(hex.EncodeToString(digest[:]))
}

func base64Encode(input data.Value, _ data.Parameters) data.Value {
	return data.String(base64.StdEncoding.EncodeToString([]byte(input.String())))
}

// base64Decode decodes the string form; invalid input decodes to the
// empty string.
func base64Decode(input data.Value, _ data.Parameters) data.Value {
	decoded, err := base64.StdEncoding.DecodeString(input.String())
	if err != nil {
		return data.String("")
	}
	return data.String(decoded)
}

func urlencode(input data.Value, _ data.Parameters) data.Value {
	return data.String(url.QueryEscape(input.String()))
}

// markdown renders the string form as HTML.
func markdown(input data.Value, _ data.Parameters) data.Value {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(input.String()), &buf); err != nil {
		return input
	}
	return data.String(buf.String())
}
