package fonts

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// parseType1 reads the cleartext part of a Type 1 program (FontFile). The
// program is either PFB with segment headers or PFA text whose first
// length1 bytes are cleartext.
func parseType1(data []byte, length1 int) (*programInfo, error) {
	clear, err := cleartext(data, length1)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(clear, []byte("%!")) {
		return nil, fmt.Errorf("type1: missing %%! header")
	}
	info := &programInfo{}
	sc := bufio.NewScanner(bytes.NewReader(clear))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch key {
		case "/FontName":
			if f := strings.Fields(rest); len(f) > 0 {
				info.Name = strings.TrimPrefix(f[0], "/")
			}
		case "/FullName":
			info.FullName = psString(rest)
		case "/Weight":
			info.Weight = psString(rest)
		case "/ItalicAngle":
			if f := strings.Fields(rest); len(f) > 0 {
				info.ItalicAngle, _ = strconv.ParseFloat(f[0], 64)
			}
		case "/isFixedPitch":
			info.FixedPitch = strings.HasPrefix(rest, "true")
		}
	}
	if info.Name == "" {
		return nil, fmt.Errorf("type1: no FontName")
	}
	return info, nil
}

// cleartext returns the part of the program before eexec.
func cleartext(data []byte, length1 int) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0x80 {
		if data[1] != 1 || len(data) < 6 {
			return nil, fmt.Errorf("type1: invalid pfb segment")
		}
		n := int(binary.LittleEndian.Uint32(data[2:6]))
		if n < 0 || n > len(data)-6 {
			return nil, fmt.Errorf("type1: pfb segment out of range")
		}
		return data[6 : 6+n], nil
	}
	if length1 > 0 && length1 <= len(data) {
		return data[:length1], nil
	}
	if i := bytes.Index(data, []byte("eexec")); i >= 0 {
		return data[:i], nil
	}
	return data, nil
}

// psString returns the contents of a "(...)" literal, ignoring escapes.
func psString(s string) string {
	start := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if start < 0 || end <= start {
		return ""
	}
	return s[start+1 : end]
}
