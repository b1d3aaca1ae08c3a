package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Top DICT operators.
const (
	cffFullName    = 2
	cffWeight      = 4
	cffFixedPitch  = 1201
	cffItalicAngle = 1202
)

// programInfo is what the rasterizer reads from an embedded Type 1 or bare
// CFF program. The charstrings are not interpreted; the face draws with a Go
// font of the same style.
type programInfo struct {
	Name        string
	FullName    string
	Weight      string
	ItalicAngle float64
	FixedPitch  bool
}

func (c *programInfo) style() fontStyle {
	w := strings.ToLower(c.Weight + " " + c.FullName)
	return fontStyle{
		bold:   strings.Contains(w, "bold") || strings.Contains(w, "black") || strings.Contains(w, "heavy"),
		italic: c.ItalicAngle != 0,
		mono:   c.FixedPitch,
	}
}

// cffStandardWeights are the weight names among the CFF standard strings.
var cffStandardWeights = map[int]string{
	383: "Black", 384: "Bold", 385: "Book", 386: "Light",
	387: "Medium", 388: "Regular", 389: "Roman", 390: "Semibold",
}

const cffStandardStrings = 391

// parseCFF reads the header, name, Top DICT and string INDEXes of a CFF
// font set and describes its first font.
func parseCFF(data []byte) (*programInfo, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cff: short header")
	}
	hdrSize := int(data[2])
	if data[0] != 1 || hdrSize < 4 || hdrSize > len(data) {
		return nil, fmt.Errorf("cff: bad header")
	}
	r := bytes.NewReader(data[hdrSize:])

	names, err := readIndex(r)
	if err != nil {
		return nil, fmt.Errorf("cff: name index: %w", err)
	}
	tops, err := readIndex(r)
	if err != nil {
		return nil, fmt.Errorf("cff: top dict index: %w", err)
	}
	strs, err := readIndex(r)
	if err != nil {
		return nil, fmt.Errorf("cff: string index: %w", err)
	}
	if len(names) == 0 || len(tops) == 0 {
		return nil, fmt.Errorf("cff: empty font set")
	}
	top, err := parseDict(tops[0])
	if err != nil {
		return nil, fmt.Errorf("cff: top dict: %w", err)
	}

	sid := func(op int) string {
		v, ok := top[op]
		if !ok || len(v) == 0 {
			return ""
		}
		n := int(v[0])
		if n >= cffStandardStrings && n-cffStandardStrings < len(strs) {
			return string(strs[n-cffStandardStrings])
		}
		return cffStandardWeights[n]
	}
	info := &programInfo{
		Name:     string(names[0]),
		FullName: sid(cffFullName),
		Weight:   sid(cffWeight),
	}
	if v := top[cffItalicAngle]; len(v) > 0 {
		info.ItalicAngle = v[0]
	}
	if v := top[cffFixedPitch]; len(v) > 0 {
		info.FixedPitch = v[0] != 0
	}
	return info, nil
}

// readIndex reads one INDEX structure.
func readIndex(r *bytes.Reader) ([][]byte, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	offSize, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if offSize < 1 || offSize > 4 {
		return nil, fmt.Errorf("invalid offset size %d", offSize)
	}
	offsets := make([]int, int(count)+1)
	for i := range offsets {
		if offsets[i], err = readOffset(r, int(offSize)); err != nil {
			return nil, err
		}
	}
	// offsets count from 1
	size := offsets[count] - 1
	if size < 0 || size > r.Len() {
		return nil, fmt.Errorf("index data out of range")
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	items := make([][]byte, count)
	for i := range items {
		start, end := offsets[i]-1, offsets[i+1]-1
		if start < 0 || start > end || end > size {
			return nil, fmt.Errorf("invalid index offsets")
		}
		items[i] = data[start:end]
	}
	return items, nil
}

func readOffset(r io.Reader, size int) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[4-size:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}

// parseDict decodes a DICT into operator -> operands. Two-byte operators
// are stored as 1200 + the second byte.
func parseDict(data []byte) (map[int][]float64, error) {
	dict := make(map[int][]float64)
	var operands []float64
	r := bytes.NewReader(data)
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return dict, nil
		}
		if err != nil {
			return nil, err
		}
		switch {
		case b <= 21:
			op := int(b)
			if b == 12 {
				b2, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				op = 1200 + int(b2)
			}
			dict[op] = operands
			operands = nil
		case b == 30:
			v, err := readReal(r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, v)
		case b == 28 || b == 29 || b >= 32 && b != 255:
			r.UnreadByte()
			v, err := readInteger(r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, float64(v))
		}
	}
}

// readReal decodes a nibble-packed real number.
func readReal(r *bytes.Reader) (float64, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		for _, n := range [2]byte{b >> 4, b & 0x0f} {
			switch {
			case n <= 9:
				sb.WriteByte('0' + n)
			case n == 0xa:
				sb.WriteByte('.')
			case n == 0xb:
				sb.WriteByte('E')
			case n == 0xc:
				sb.WriteString("E-")
			case n == 0xe:
				sb.WriteByte('-')
			case n == 0xf:
				return strconv.ParseFloat(sb.String(), 64)
			}
		}
	}
}

func readInteger(r *bytes.Reader) (int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0 >= 32 && b0 <= 246:
		return int(b0) - 139, nil
	case b0 >= 247 && b0 <= 254:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b0 <= 250 {
			return (int(b0)-247)*256 + int(b1) + 108, nil
		}
		return -(int(b0)-251)*256 - int(b1) - 108, nil
	case b0 == 28:
		var v int16
		err := binary.Read(r, binary.BigEndian, &v)
		return int(v), err
	case b0 == 29:
		var v int32
		err := binary.Read(r, binary.BigEndian, &v)
		return int(v), err
	}
	return 0, fmt.Errorf("invalid integer prefix %d", b0)
}
