package decode

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRaw_Decode(t *testing.T) {
	var inner []byte
	inner = protowire.AppendTag(inner, 1, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 7)

	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, 150)
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendBytes(msg, []byte("hello"))
	msg = protowire.AppendTag(msg, 3, protowire.BytesType)
	msg = protowire.AppendBytes(msg, inner)
	msg = protowire.AppendTag(msg, 4, protowire.Fixed32Type)
	msg = protowire.AppendFixed32(msg, 0x3f800000)
	msg = protowire.AppendTag(msg, 5, protowire.Fixed64Type)
	msg = protowire.AppendFixed64(msg, 1)

	got, err := Raw{}.Decode(context.Background(), msg)
	require.NoError(t, err)

	want := "1: 150\n" +
		"2: \"hello\"\n" +
		"3 {\n" +
		"  1: 7\n" +
		"}\n" +
		"4: 0x3f800000\n" +
		"5: 0x0000000000000001\n"
	assert.Equal(t, want, got)
}

func TestRaw_Group(t *testing.T) {
	var msg []byte
	msg = protowire.AppendTag(msg, 2, protowire.StartGroupType)
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, 3)
	msg = protowire.AppendTag(msg, 2, protowire.EndGroupType)

	got, err := Raw{}.Decode(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "2 {\n  1: 3\n}\n", got)
}

func TestRaw_EscapesStrings(t *testing.T) {
	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.BytesType)
	msg = protowire.AppendBytes(msg, []byte{'a', '"', '\n', 0xff})

	got, err := Raw{}.Decode(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "1: \"a\\\"\\n\\377\"\n", got)
}

func TestRaw_Empty(t *testing.T) {
	got, err := Raw{}.Decode(context.Background(), []byte{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRaw_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"truncated varint":   {0x08, 0xff},
		"field zero":         {0x00, 0x01},
		"dangling end group": {0x0c},
		"short bytes":        {0x12, 0x05, 'a'},
		"bad wire type":      {0x0f},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Raw{}.Decode(context.Background(), in)
			assert.Error(t, err)
		})
	}
}

func TestRaw_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Raw{}.Decode(ctx, []byte{0x08, 0x01})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProtoc_MatchesRaw(t *testing.T) {
	path, err := exec.LookPath("protoc")
	if err != nil {
		t.Skip("protoc not installed")
	}

	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, 42)

	p := &Protoc{Path: path}
	got, err := p.Decode(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "1: 42\n", got)
}

func TestProtoc_MissingBinary(t *testing.T) {
	p := &Protoc{Path: "/nonexistent/protoc"}
	_, err := p.Decode(context.Background(), []byte{0x08, 0x01})
	assert.Error(t, err)
}
