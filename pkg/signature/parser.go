package signature

import (
	"context"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Parser turns decrypted signature bytes into their structured form.
type Parser interface {
	Parse(raw []byte) (proto.Message, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(raw []byte) (proto.Message, error)

// Parse calls f.
func (f ParserFunc) Parse(raw []byte) (proto.Message, error) { return f(raw) }

// DynamicParser decodes signatures against a runtime message descriptor.
type DynamicParser struct {
	desc protoreflect.MessageDescriptor
}

// NewDynamicParser creates a parser for messages described by desc.
func NewDynamicParser(desc protoreflect.MessageDescriptor) *DynamicParser {
	return &DynamicParser{desc: desc}
}

// NewParser returns a parser for message in the .proto file at path, or for
// the built-in layout when path is empty.
func NewParser(ctx context.Context, path, message string) (*DynamicParser, error) {
	if path == "" {
		desc, err := BuiltinDescriptor()
		if err != nil {
			return nil, err
		}
		return NewDynamicParser(desc), nil
	}
	if message == "" {
		message = BuiltinMessage
	}
	desc, err := LoadDescriptor(ctx, path, message)
	if err != nil {
		return nil, err
	}
	return NewDynamicParser(desc), nil
}

// Descriptor returns the message descriptor used for parsing.
func (p *DynamicParser) Descriptor() protoreflect.MessageDescriptor {
	return p.desc
}

// Parse implements Parser.
func (p *DynamicParser) Parse(raw []byte) (proto.Message, error) {
	msg := dynamicpb.NewMessage(p.desc)
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
