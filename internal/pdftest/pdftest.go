// Package pdftest assembles small PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

type Builder struct {
	objs    [][]byte
	Trailer string
}

func New() *Builder { return &Builder{} }

// Add appends an object body and returns its object number.
func (b *Builder) Add(body string) int {
	b.objs = append(b.objs, []byte(body))
	return len(b.objs)
}

// Reserve allocates an object number to be filled by Set.
func (b *Builder) Reserve() int { return b.Add("null") }

func (b *Builder) Set(num int, body string) { b.objs[num-1] = []byte(body) }

// Stream appends a stream object; dict must not contain /Length.
func (b *Builder) Stream(dict string, data []byte) int {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	b.objs = append(b.objs, buf.Bytes())
	return len(b.objs)
}

// Bytes serializes the file with a classic xref table.
func (b *Builder) Bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(b.objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R %s >>\nstartxref\n%d\n%%%%EOF\n", len(b.objs)+1, root, b.Trailer, xref)
	return buf.Bytes()
}

// Document builds a file of n pages of w x h points; content returns the
// content stream of page i (1-based).
func Document(n int, w, h float64, content func(i int) string) []byte {
	b := New()
	catalog := b.Reserve()
	pages := b.Reserve()
	font := b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	kids := ""
	for i := 1; i <= n; i++ {
		c := ""
		if content != nil {
			c = content(i)
		}
		stream := b.Stream("", []byte(c))
		page := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Contents %d 0 R >>", pages, stream))
		kids += fmt.Sprintf("%d 0 R ", page)
	}
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 %g %g] /Resources << /Font << /F1 %d 0 R >> >> >>", kids, n, w, h, font))
	return b.Bytes(catalog)
}
