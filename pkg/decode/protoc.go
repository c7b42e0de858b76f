package decode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Protoc decodes by piping the payload through `protoc --decode_raw`.
type Protoc struct {
	// Path to the protoc binary. Empty means "protoc" on $PATH.
	Path string
}

// Decode implements Decoder. The process is killed when ctx is done.
func (p *Protoc) Decode(ctx context.Context, raw []byte) (string, error) {
	path := p.Path
	if path == "" {
		path = "protoc"
	}

	cmd := exec.CommandContext(ctx, path, "--decode_raw")
	cmd.Stdin = bytes.NewReader(raw)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("protoc: %w", err)
		}
		return "", fmt.Errorf("protoc: %w: %s", err, msg)
	}
	return stdout.String(), nil
}
