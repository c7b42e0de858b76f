package signature

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteList(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      []byte
		wantStage Stage
		wantIndex int
	}{
		{name: "basic", in: "[12,255,0,7]", want: []byte{12, 255, 0, 7}},
		{name: "spaces", in: "  [ 1, 2 ,3 ] ", want: []byte{1, 2, 3}},
		{name: "single", in: "[0]", want: []byte{0}},
		{name: "empty list", in: "[]", want: []byte{}},
		{name: "out of range", in: "[12,300,0]", wantStage: StageToken, wantIndex: 1},
		{name: "negative", in: "[-1]", wantStage: StageToken},
		{name: "non numeric", in: "[1,x]", wantStage: StageToken, wantIndex: 1},
		{name: "trailing comma", in: "[1,2,]", wantStage: StageToken, wantIndex: 2},
		{name: "hex not accepted", in: "[0x10]", wantStage: StageToken},
		{name: "missing open", in: "1,2]", wantStage: StageDelimiters},
		{name: "missing close", in: "[1,2", wantStage: StageDelimiters},
		{name: "wrong brackets", in: "(1,2)", wantStage: StageDelimiters},
		{name: "empty", in: "", wantStage: StageDelimiters},
		{name: "lone bracket", in: "[", wantStage: StageDelimiters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteList(tt.in)
			if tt.wantStage == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSignatureParse)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantStage, pe.Stage)
			if tt.wantStage == StageToken {
				assert.Equal(t, tt.wantIndex, pe.Index)
			}
			assert.Nil(t, got)
		})
	}
}

func TestParseByteList_OutOfRangeCause(t *testing.T) {
	_, err := ParseByteList("[12,300,0]")
	var numErr *strconv.NumError
	require.True(t, errors.As(err, &numErr))
	assert.ErrorIs(t, numErr, strconv.ErrRange)
	assert.Contains(t, err.Error(), `"300"`)
}

func TestFormatByteList(t *testing.T) {
	in := []byte{12, 255, 0, 7}
	text := FormatByteList(in)
	assert.Equal(t, "[12,255,0,7]", text)

	back, err := ParseByteList(text)
	require.NoError(t, err)
	assert.Equal(t, in, back)
	assert.Equal(t, "[]", FormatByteList(nil))
}
