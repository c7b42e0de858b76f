package signature

import (
	"strconv"
	"strings"
)

// ParseByteList parses text of the form "[b0,b1,...]" into bytes. Whitespace
// around the brackets and tokens is ignored. "[]" yields an empty, non-nil
// slice.
func ParseByteList(text string) ([]byte, error) {
	s := strings.TrimSpace(text)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, &ParseError{Stage: StageDelimiters, Cause: errMissingDelimiters}
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []byte{}, nil
	}

	tokens := strings.Split(inner, ",")
	out := make([]byte, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, &ParseError{Stage: StageToken, Index: i, Token: tok, Cause: errEmptyToken}
		}
		v, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return nil, &ParseError{Stage: StageToken, Index: i, Token: tok, Cause: err}
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// FormatByteList is the inverse of ParseByteList.
func FormatByteList(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return sb.String()
}
