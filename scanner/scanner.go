package scanner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/wudi/pdfviewer/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // 'stream' keyword with its payload
	TokenInlineImage                  // inline image data following ID ... EI (content stream only)
	TokenKeyword                      // other keywords (obj, endobj, >>, ], operators)
)

// Token is a single lexical item. Only the fields relevant to Type are set:
// Str for names and keywords, Bytes for strings, streams and inline images,
// Int/Float/IsInt for numbers, Int/Gen for references, Bool for booleans.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int
}

// Number returns the numeric value of a TokenNumber as float64.
func (t Token) Number() float64 {
	if t.IsInt {
		return float64(t.Int)
	}
	return t.Float
}

type Config struct {
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxInlineImage  int64
	Recovery        recovery.Strategy
}

// Scanner tokenizes an in-memory PDF byte slice. Documents are fetched whole
// before decoding, so there is no windowed reading.
type Scanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	arrayDepth    int
	dictDepth     int
	recLoc        recovery.Location
	lastAction    recovery.Action
}

func New(data []byte, cfg Config) *Scanner {
	return &Scanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	s.arrayDepth, s.dictDepth = 0, 0
	return nil
}

// SetNextStreamLength hints the payload length of the next stream; -1 clears it.
func (s *Scanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *Scanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: ">", Pos: start})
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case '{', '}':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
	}
	if isDigitStart(c) {
		if tok, ok := s.scanNumberOrRef(); ok {
			return tok, nil
		}
	}
	return s.scanKeyword()
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	n := int64(len(s.data))
	for s.pos < n {
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.pos >= n {
				break
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				s.pos++
				if s.pos < n && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.pos < n && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; k++ {
					val = val<<3 + int(s.data[s.pos]-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
			}
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, s.recover(errors.New("literal string too long"), "literal")
		}
	}
	if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
		return Token{}, err
	}
	return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isHex(c) {
			hexbuf = append(hexbuf, c)
		}
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
		return Token{}, s.recover(errors.New("hex string too long"), "hex")
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Pos: start})
}

// scanNumberOrRef reads a number, folding "<int> <int> R" into a reference.
// It reports false when the bytes at the cursor are not a number at all.
func (s *Scanner) scanNumberOrRef() (Token, bool) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		return Token{}, false
	}
	if i1, err := strconv.ParseInt(num1, 10, 64); err == nil {
		save := s.pos
		s.skipWSAndComments()
		num2 := s.scanNumberString()
		if num2 != "" {
			if i2, err := strconv.ParseInt(num2, 10, 64); err == nil {
				s.skipWSAndComments()
				if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' && (s.pos+1 == int64(len(s.data)) || isDelimiter(s.data[s.pos+1])) {
					s.pos++
					return Token{Type: TokenRef, Int: i1, Gen: int(i2), Pos: start}, true
				}
			}
		}
		s.pos = save
		return Token{Type: TokenNumber, Int: i1, IsInt: true, Pos: start}, true
	}
	f, err := strconv.ParseFloat(normalizeReal(num1), 64)
	if err != nil {
		_ = s.recover(errors.New("malformed number "+num1), "number")
		f = 0
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, true
}

func (s *Scanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			seenDigit = true
		} else if !(c == '.' || ((c == '+' || c == '-') && s.pos == start)) {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

// normalizeReal tolerates producer quirks such as "--5" or "5." that
// strconv rejects.
func normalizeReal(v string) string {
	for len(v) > 1 && (v[0] == '-' || v[0] == '+') && (v[1] == '-' || v[1] == '+') {
		v = v[1:]
	}
	if v[len(v)-1] == '.' {
		v += "0"
	}
	return v
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		// stray delimiter such as ')'
		s.pos++
		if err := s.recover(errors.New("unexpected delimiter"), "keyword"); err != nil {
			return Token{}, err
		}
		return s.Next()
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID":
		return s.scanInlineImage(start)
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

// scanStream consumes the payload following a 'stream' keyword.
func (s *Scanner) scanStream(start int64) (Token, error) {
	n := int64(len(s.data))
	if s.pos < n && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < n && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	needle := []byte("endstream")
	hint := s.nextStreamLen
	s.nextStreamLen = -1
	if hint >= 0 && dataStart+hint <= n {
		end := dataStart + hint
		rest := bytes.TrimLeft(s.data[end:min(end+32, n)], "\r\n \t")
		if bytes.HasPrefix(rest, needle) {
			if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
				return Token{}, s.recover(errors.New("stream too long"), "stream")
			}
			payload := s.data[dataStart:end]
			s.pos = end + int64(bytes.Index(s.data[end:], needle)+len(needle))
			return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
		}
		if err := s.recover(errors.New("stream length does not match endstream"), "stream"); err != nil {
			return Token{}, err
		}
	}
	idx := bytes.Index(s.data[dataStart:], needle)
	if idx < 0 {
		if err := s.recover(errors.New("endstream not found"), "stream"); err != nil {
			return Token{}, err
		}
		payload := s.data[dataStart:]
		s.pos = n
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}
	end := dataStart + int64(idx)
	s.pos = end + int64(len(needle))
	// the EOL before endstream is not part of the data
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
		return Token{}, s.recover(errors.New("stream too long"), "stream")
	}
	return s.emit(Token{Type: TokenStream, Bytes: s.data[dataStart:end], Pos: start})
}

// scanInlineImage consumes bytes after the ID keyword until an EI delimited
// by whitespace on both sides.
func (s *Scanner) scanInlineImage(start int64) (Token, error) {
	n := int64(len(s.data))
	if s.pos < n && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	dataStart := s.pos
	for i := dataStart; i+1 < n; i++ {
		if s.data[i] != 'E' || s.data[i+1] != 'I' {
			continue
		}
		if i > dataStart && !isWhitespace(s.data[i-1]) {
			continue
		}
		if i+2 < n && !isDelimiter(s.data[i+2]) {
			continue
		}
		end := i
		if end > dataStart && isWhitespace(s.data[end-1]) {
			end--
		}
		if s.cfg.MaxInlineImage > 0 && end-dataStart > s.cfg.MaxInlineImage {
			return Token{}, s.recover(errors.New("inline image too long"), "inline_image")
		}
		s.pos = i + 2
		return s.emit(Token{Type: TokenInlineImage, Bytes: s.data[dataStart:end], Pos: start})
	}
	s.pos = n
	return Token{}, s.recover(errors.New("unterminated inline image"), "inline_image")
}

func (s *Scanner) recover(err error, loc string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	s.lastAction = s.cfg.Recovery.OnError(context.Background(), err, location)
	switch s.lastAction {
	case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
		return nil
	default:
		return err
	}
}

func (s *Scanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			return Token{}, errors.New("array depth exceeded")
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			return Token{}, errors.New("dict depth exceeded")
		}
	case TokenKeyword:
		if tok.Str == "]" && s.arrayDepth > 0 {
			s.arrayDepth--
		}
		if tok.Str == ">>" && s.dictDepth > 0 {
			s.dictDepth--
		}
	}
	return tok, nil
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
