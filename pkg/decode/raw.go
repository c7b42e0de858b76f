package decode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxDepth caps nested message recursion so hostile input cannot exhaust the stack.
const maxDepth = 64

var errTrailingEndGroup = errors.New("unexpected end-group tag")

// Raw renders protobuf wire data without a schema, in the layout of
// `protoc --decode_raw`. Length-delimited fields that parse as a message are
// printed as nested blocks; everything else is printed as a quoted string.
type Raw struct{}

// Decode implements Decoder.
func (Raw) Decode(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fields, err := parseFields(raw, 0)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	writeFields(&sb, fields, 0)
	return sb.String(), nil
}

type wireField struct {
	num    protowire.Number
	typ    protowire.Type
	scalar uint64
	bytes  []byte
	nested []wireField
	group  []wireField
}

func parseFields(b []byte, depth int) ([]wireField, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("message nesting exceeds %d levels", maxDepth)
	}

	var fields []wireField
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("tag: %w", protowire.ParseError(n))
		}
		if num < protowire.MinValidNumber {
			return nil, fmt.Errorf("invalid field number %d", num)
		}
		b = b[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.scalar = uint64(v)
		case protowire.Fixed64Type:
			f.scalar, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
			if n >= 0 && len(f.bytes) > 0 {
				if nested, err := parseFields(f.bytes, depth+1); err == nil {
					f.nested = nested
				}
			}
		case protowire.StartGroupType:
			var body []byte
			body, n = protowire.ConsumeGroup(num, b)
			if n >= 0 {
				group, err := parseFields(body, depth+1)
				if err != nil {
					return nil, fmt.Errorf("group %d: %w", num, err)
				}
				f.group = group
			}
		case protowire.EndGroupType:
			return nil, errTrailingEndGroup
		default:
			return nil, fmt.Errorf("field %d: unknown wire type %d", num, typ)
		}
		if n < 0 {
			return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

func writeFields(sb *strings.Builder, fields []wireField, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		switch {
		case f.typ == protowire.StartGroupType:
			fmt.Fprintf(sb, "%s%d {\n", indent, f.num)
			writeFields(sb, f.group, depth+1)
			fmt.Fprintf(sb, "%s}\n", indent)
		case f.nested != nil:
			fmt.Fprintf(sb, "%s%d {\n", indent, f.num)
			writeFields(sb, f.nested, depth+1)
			fmt.Fprintf(sb, "%s}\n", indent)
		case f.typ == protowire.BytesType:
			fmt.Fprintf(sb, "%s%d: \"%s\"\n", indent, f.num, cEscape(f.bytes))
		case f.typ == protowire.Fixed32Type:
			fmt.Fprintf(sb, "%s%d: 0x%08x\n", indent, f.num, f.scalar)
		case f.typ == protowire.Fixed64Type:
			fmt.Fprintf(sb, "%s%d: 0x%016x\n", indent, f.num, f.scalar)
		default:
			fmt.Fprintf(sb, "%s%d: %d\n", indent, f.num, f.scalar)
		}
	}
}

// cEscape escapes b the way protobuf text format does: printable ASCII is
// kept, common control characters use their C escapes and the rest is octal.
func cEscape(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch c {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '"':
			sb.WriteString(`\"`)
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if c >= 0x20 && c < 0x7f {
				sb.WriteByte(c)
			} else {
				fmt.Fprintf(&sb, "\\%03o", c)
			}
		}
	}
	return sb.String()
}
