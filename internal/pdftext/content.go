package pdftext

import "strings"

// decodeContent walks a page content stream and renders the strings shown by
// Tj, TJ, ' and ". Line moves (T*, ', " and a Td/TD with a vertical offset)
// become newlines. String bytes are read as Latin-1.
func decodeContent(data []byte) string {
	var (
		out      strings.Builder
		shown    [][]byte
		operands []string
	)
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteral(data[i:])
			shown = append(shown, s)
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			s, n := readHex(data[i:])
			shown = append(shown, s)
			i += n
		case c == '/':
			i++
			for i < len(data) && !isSpace(data[i]) && !isDelim(data[i]) {
				i++
			}
		case isDelim(c):
			i++
		default:
			j := i
			for j < len(data) && !isSpace(data[j]) && !isDelim(data[j]) {
				j++
			}
			tok := string(data[i:j])
			i = j
			if isNumber(tok) {
				operands = append(operands, tok)
				continue
			}
			switch tok {
			case "Tj", "TJ":
				writeLatin1(&out, shown)
			case "'", "\"":
				out.WriteByte('\n')
				writeLatin1(&out, shown)
			case "T*":
				out.WriteByte('\n')
			case "Td", "TD":
				if len(operands) >= 2 && !isZero(operands[len(operands)-1]) && out.Len() > 0 {
					out.WriteByte('\n')
				}
			}
			shown, operands = shown[:0], operands[:0]
		}
	}
	return out.String()
}

func writeLatin1(out *strings.Builder, shown [][]byte) {
	for _, s := range shown {
		for _, b := range s {
			out.WriteRune(rune(b))
		}
	}
}

// readLiteral decodes a balanced (...) string starting at data[0] and returns
// its bytes and the number of input bytes consumed.
func readLiteral(data []byte) ([]byte, int) {
	var s []byte
	depth := 0
	i := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				s = append(s, '\n')
			case 'r':
				s = append(s, '\r')
			case 't':
				s = append(s, '\t')
			case 'b':
				s = append(s, '\b')
			case 'f':
				s = append(s, '\f')
			case '\r', '\n':
				if e == '\r' && i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(data[i]-'0')
					}
					s = append(s, byte(v))
				} else {
					s = append(s, e)
				}
			}
		case c == '(':
			depth++
			if depth > 1 {
				s = append(s, c)
			}
		case c == ')':
			depth--
			if depth == 0 {
				return s, i + 1
			}
			s = append(s, c)
		default:
			s = append(s, c)
		}
	}
	return s, i
}

// readHex decodes a <...> string starting at data[0].
func readHex(data []byte) ([]byte, int) {
	var (
		s    []byte
		hi   = -1
		i    = 1
		done bool
	)
	for ; i < len(data); i++ {
		c := data[i]
		if c == '>' {
			done = true
			break
		}
		v := hexVal(c)
		if v < 0 {
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			s = append(s, byte(hi<<4|v))
			hi = -1
		}
	}
	if hi >= 0 {
		s = append(s, byte(hi<<4))
	}
	if done {
		i++
	}
	return s, i
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	digits := 0
	for i, c := range tok {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

func isZero(tok string) bool {
	return strings.Trim(strings.TrimLeft(tok, "+-"), "0.") == ""
}
