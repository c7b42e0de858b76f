package signature

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// BuiltinMessage is the full name of the built-in signature message.
const BuiltinMessage = "inspectd.signature.Signature"

const builtinFile = "inspectd/signature.proto"

//go:embed signature.proto
var builtinSource string

// ErrMessageNotFound is returned when the requested message is not defined by
// the compiled schema.
var ErrMessageNotFound = errors.New("message not found in schema")

var builtinDescriptor = sync.OnceValues(func() (protoreflect.MessageDescriptor, error) {
	resolver := &protocompile.SourceResolver{
		Accessor: protocompile.SourceAccessorFromMap(map[string]string{
			builtinFile: builtinSource,
		}),
	}
	return compileMessage(context.Background(), resolver, builtinFile, BuiltinMessage)
})

// BuiltinDescriptor returns the descriptor of the built-in Signature message.
// The embedded schema is compiled on first use.
func BuiltinDescriptor() (protoreflect.MessageDescriptor, error) {
	return builtinDescriptor()
}

// LoadDescriptor compiles the .proto file at path and returns the descriptor
// for message. The file's directory and importPaths are searched for imports;
// well-known google/protobuf imports are always available.
func LoadDescriptor(ctx context.Context, path, message string, importPaths ...string) (protoreflect.MessageDescriptor, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	resolver := &protocompile.SourceResolver{
		ImportPaths: append([]string{dir}, importPaths...),
	}
	return compileMessage(ctx, resolver, name, message)
}

func compileMessage(ctx context.Context, resolver protocompile.Resolver, file, message string) (protoreflect.MessageDescriptor, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
	}

	files, err := compiler.Compile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", file, err)
	}

	if md := findMessage(files, protoreflect.FullName(message)); md != nil {
		return md, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrMessageNotFound, message, file)
}

func findMessage(files linker.Files, name protoreflect.FullName) protoreflect.MessageDescriptor {
	for _, f := range files {
		if md := searchMessages(f.Messages(), name); md != nil {
			return md
		}
	}
	return nil
}

func searchMessages(msgs protoreflect.MessageDescriptors, name protoreflect.FullName) protoreflect.MessageDescriptor {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.FullName() == name {
			return md
		}
		if nested := searchMessages(md.Messages(), name); nested != nil {
			return nested
		}
	}
	return nil
}
