package signature

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FormatSchema renders the .proto source of the file that declares md.
func FormatSchema(md protoreflect.MessageDescriptor) (string, error) {
	fd, err := desc.WrapFile(md.ParentFile())
	if err != nil {
		return "", fmt.Errorf("wrap schema: %w", err)
	}
	printer := protoprint.Printer{Compact: true}
	out, err := printer.PrintProtoToString(fd)
	if err != nil {
		return "", fmt.Errorf("print schema: %w", err)
	}
	return out, nil
}
