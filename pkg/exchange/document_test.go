package exchange

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestDocument_RoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	e := NewLive(at)
	e.Request.Method = "POST"
	e.Request.URL = "https://api.example.com/rpc"
	e.Request.Host = "api.example.com"
	e.Request.Path = "/rpc"
	e.Request.Headers = http.Header{"Content-Type": {"application/binary"}}
	e.Request.Body = []byte{8, 1}
	e.Request.EncryptedSignature = []byte{0xde, 0xad}
	e.Response.StatusCode = 200
	e.Response.Body = []byte{8, 2}
	_, _, err := e.Request.DecodedBody.Fill(func() (string, error) { return "1: 1\n", nil })
	require.NoError(t, err)
	e.Request.Signature.Set([]byte{12, 255}, wrapperspb.String("sig"))

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.True(t, doc.IsLive)
	assert.JSONEq(t, `"sig"`, string(doc.Request.Signature))
	require.NotNil(t, doc.Request.DecodedBody)
	assert.Nil(t, doc.Response.DecodedBody)

	back, err := FromDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, e.ID(), back.ID())
	assert.False(t, back.IsLive(), "documents always load as replayed")
	assert.True(t, at.Equal(back.CapturedAt()))
	assert.Equal(t, e.Request.Body, back.Request.Body)
	assert.Equal(t, e.Request.EncryptedSignature, back.Request.EncryptedSignature)
	assert.Equal(t, []byte{12, 255}, back.Request.Signature.Raw())
	assert.Nil(t, back.Request.Signature.Parsed())

	v, ok := back.Request.DecodedBody.Get()
	assert.True(t, ok)
	assert.Equal(t, "1: 1\n", v)
	assert.Equal(t, SlotUnset, back.Response.DecodedBody.State())
}

func TestFromDocument_InvalidID(t *testing.T) {
	_, err := FromDocument(Document{ID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSummary(t *testing.T) {
	e := NewLive(time.Now())
	e.Request.Method = "GET"
	e.Request.Path = "/x"
	e.Request.Body = []byte{1, 2, 3}

	s := e.Summary()
	assert.Equal(t, e.ID().String(), s.ID)
	assert.Equal(t, 3, s.RequestSize)
	assert.False(t, s.HasResponse)
	assert.False(t, s.HasSignature)
	assert.False(t, s.Decrypted)

	e.Request.Signature.Set([]byte{1}, nil)
	assert.True(t, e.Summary().Decrypted)
}

func TestDocument_EmptyBodiesStayPresent(t *testing.T) {
	e := NewLive(time.Now())
	e.Request.Body = []byte{}
	e.Response.Body = []byte{}
	e.Request.Signature.Set([]byte{}, nil)

	missing := NewLive(time.Now())

	for _, tt := range []struct {
		name    string
		src     *Exchange
		present bool
	}{
		{"empty", e, true},
		{"missing", missing, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.src)
			require.NoError(t, err)

			var doc Document
			require.NoError(t, json.Unmarshal(data, &doc))
			back, err := FromDocument(doc)
			require.NoError(t, err)

			if tt.present {
				require.NotNil(t, back.Request.Body)
				require.NotNil(t, back.Response.Body)
				require.NotNil(t, back.Request.Signature.Raw())
				assert.Empty(t, back.Request.Body)
				assert.Empty(t, back.Response.Body)
				assert.True(t, back.Summary().HasResponse)
				assert.True(t, back.Summary().Decrypted)
			} else {
				assert.Nil(t, back.Request.Body)
				assert.Nil(t, back.Response.Body)
				assert.Nil(t, back.Request.Signature.Raw())
				assert.False(t, back.Summary().HasResponse)
			}
		})
	}
}
