package capture

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// FieldPath is a sequence of protobuf field numbers leading from the request
// envelope to the encrypted signature bytes.
type FieldPath []protowire.Number

// ParseFieldPath parses a dotted path such as "6.1". The empty string is the
// empty path.
func ParseFieldPath(s string) (FieldPath, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	path := make(FieldPath, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil || !protowire.Number(n).IsValid() {
			return nil, fmt.Errorf("invalid field number %q in path %q", part, s)
		}
		path = append(path, protowire.Number(n))
	}
	return path, nil
}

func (p FieldPath) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(int(n))
	}
	return strings.Join(parts, ".")
}

// Extract returns the length-delimited value found by following the path
// through nested messages in body. At each level the first field with the
// wanted number is used. It returns nil when the path is empty or does not
// resolve.
func (p FieldPath) Extract(body []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	cur := body
	for _, num := range p {
		next, ok := findBytesField(cur, num)
		if !ok {
			return nil
		}
		cur = next
	}
	return append([]byte{}, cur...)
}

func findBytesField(b []byte, want protowire.Number) ([]byte, bool) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, false
		}
		b = b[n:]

		if num == want && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, false
			}
			return v, true
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, false
		}
		b = b[m:]
	}
	return nil, false
}
