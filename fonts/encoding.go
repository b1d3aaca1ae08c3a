package fonts

import (
	"context"
	"strconv"
	"strings"

	"github.com/wudi/pdfviewer/ir/raw"
)

// winAnsiHigh maps the 0x80-0x9F range of WinAnsiEncoding; the rest of the
// upper half matches Latin-1.
var winAnsiHigh = [32]rune{
	0x20AC, 0, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0, 0x017D, 0,
	0, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0, 0x017E, 0x0178,
}

// glyphNames covers the glyph names commonly found in /Differences that are
// not single letters or uniXXXX forms.
var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "parenleft": '(', "parenright": ')',
	"asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>', "question": '?',
	"at": '@', "bracketleft": '[', "backslash": '\\', "bracketright": ']', "asciicircum": '^',
	"underscore": '_', "grave": '`', "braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"quoteright": 0x2019, "quoteleft": 0x2018, "quotedblleft": 0x201C, "quotedblright": 0x201D,
	"bullet": 0x2022, "endash": 0x2013, "emdash": 0x2014, "ellipsis": 0x2026, "trademark": 0x2122,
	"copyright": 0xA9, "registered": 0xAE, "degree": 0xB0, "section": 0xA7, "paragraph": 0xB6,
	"fi": 0xFB01, "fl": 0xFB02, "Euro": 0x20AC, "minus": 0x2212, "multiply": 0xD7, "divide": 0xF7,
	"eacute": 0xE9, "egrave": 0xE8, "agrave": 0xE0, "ccedilla": 0xE7, "udieresis": 0xFC,
	"odieresis": 0xF6, "adieresis": 0xE4, "germandbls": 0xDF, "nbspace": 0xA0, "dagger": 0x2020,
}

func baseEncoding(name string, symbolic bool) [256]rune {
	var enc [256]rune
	if symbolic && name == "" {
		return enc
	}
	for c := 32; c < 127; c++ {
		enc[c] = rune(c)
	}
	switch name {
	case "WinAnsiEncoding", "MacRomanEncoding", "PDFDocEncoding":
		for c := 0x80; c < 0xA0; c++ {
			enc[c] = winAnsiHigh[c-0x80]
		}
		for c := 0xA0; c < 256; c++ {
			enc[c] = rune(c)
		}
	default:
		enc['\''] = 0x2019
		enc['`'] = 0x2018
	}
	return enc
}

// simpleEncoding builds the code to rune table of a simple font from its
// base encoding and /Differences.
func simpleEncoding(ctx context.Context, res Resolver, dict *raw.DictObj, symbolic bool) [256]rune {
	obj, err := res.Resolve(ctx, valueOf(dict, "Encoding"))
	if err != nil {
		return baseEncoding("", symbolic)
	}
	switch v := obj.(type) {
	case raw.NameObj:
		return baseEncoding(v.Val, symbolic)
	case *raw.DictObj:
		enc := baseEncoding(v.Name("BaseEncoding"), symbolic)
		diffs, err := res.Resolve(ctx, valueOf(v, "Differences"))
		if err != nil {
			return enc
		}
		arr, ok := diffs.(*raw.ArrayObj)
		if !ok {
			return enc
		}
		code := 0
		for _, it := range arr.Items {
			switch d := it.(type) {
			case raw.NumberObj:
				code = int(d.Int())
			case raw.NameObj:
				if code >= 0 && code < 256 {
					enc[code] = GlyphRune(d.Val)
				}
				code++
			}
		}
		return enc
	}
	return baseEncoding("", symbolic)
}

// GlyphRune maps a glyph name to its character, 0 when unknown.
func GlyphRune(name string) rune {
	if r, ok := glyphNames[name]; ok {
		return r
	}
	if len(name) == 1 {
		return rune(name[0])
	}
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v)
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v)
		}
	}
	return 0
}
