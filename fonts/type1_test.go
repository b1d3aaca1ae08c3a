package fonts

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfviewer/ir/raw"
)

const type1Header = `%!PS-AdobeFont-1.0: NimbusMonoPS-BoldItalic 1.0
/FontInfo 10 dict dup begin
/FullName (Nimbus Mono PS Bold Italic) readonly def
/Weight (Bold) readonly def
/ItalicAngle -12 def
/isFixedPitch true def
end readonly def
/FontName /NimbusMonoPS-BoldItalic def
currentfile eexec
`

func pfb(clear, private []byte) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x80, 1})
	binary.Write(&b, binary.LittleEndian, uint32(len(clear)))
	b.Write(clear)
	b.Write([]byte{0x80, 2})
	binary.Write(&b, binary.LittleEndian, uint32(len(private)))
	b.Write(private)
	b.Write([]byte{0x80, 3})
	return b.Bytes()
}

func TestParseType1(t *testing.T) {
	want := &programInfo{
		Name:        "NimbusMonoPS-BoldItalic",
		FullName:    "Nimbus Mono PS Bold Italic",
		Weight:      "Bold",
		ItalicAngle: -12,
		FixedPitch:  true,
	}
	encrypted := []byte{0xde, 0xad, 0xbe, 0xef}
	for name, tc := range map[string]struct {
		data    []byte
		length1 int
	}{
		"pfb":            {pfb([]byte(type1Header), encrypted), 0},
		"pfa":            {append([]byte(type1Header), encrypted...), len(type1Header)},
		"pfa no Length1": {append([]byte(type1Header), encrypted...), 0},
	} {
		info, err := parseType1(tc.data, tc.length1)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if diff := cmp.Diff(want, info); diff != "" {
			t.Fatalf("%s: info (-want +got):\n%s", name, diff)
		}
	}
}

func TestParseType1Rejects(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("not postscript"),
		{0x80, 2, 0, 0, 0, 0},
		{0x80, 1, 0xff, 0xff, 0, 0, '%', '!'},
		[]byte("%!PS-AdobeFont-1.0\ncurrentfile eexec\n"),
	} {
		if _, err := parseType1(data, 0); err == nil {
			t.Fatalf("parseType1(%q) succeeded", data)
		}
	}
}

func TestEmbeddedType1Style(t *testing.T) {
	sd := raw.Dict()
	sd.Set("Length1", raw.NumberInt(int64(len(type1Header))))
	fd := raw.Dict()
	fd.Set("Type", raw.NameLiteral("FontDescriptor"))
	fd.Set("FontFile", raw.NewStream(sd, []byte(type1Header+"\x00\x01")))
	d := raw.Dict()
	d.Set("Subtype", raw.NameLiteral("Type1"))
	d.Set("BaseFont", raw.NameLiteral("ABCDEF+F1"))
	d.Set("FontDescriptor", fd)

	f, err := Load(context.Background(), directResolver{}, d)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.style != (fontStyle{bold: true, italic: true, mono: true}) {
		t.Fatalf("style %+v", f.style)
	}
	if f.font != fallback(f.style) {
		t.Fatalf("face does not draw with the styled fallback")
	}
}
