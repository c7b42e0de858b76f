package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/getmockd/inspectd/internal/id"
	"github.com/getmockd/inspectd/pkg/decode"
	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/session"
	"github.com/getmockd/inspectd/pkg/signature"
	"github.com/getmockd/inspectd/pkg/telemetry"
)

type staticCert []byte

func (c staticCert) CACertPEM() ([]byte, error) {
	if c == nil {
		return nil, errors.New("not loaded")
	}
	return c, nil
}

type fixture struct {
	server      *Server
	store       *exchange.Store
	feed        *Feed
	sessionsDir string
	decodeCalls *atomic.Int32
	decodeErr   *atomic.Pointer[error]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		sessionsDir: t.TempDir(),
		decodeCalls: &atomic.Int32{},
		decodeErr:   &atomic.Pointer[error]{},
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	f.feed = NewFeed(4)
	f.store = exchange.NewStore(
		exchange.WithInsertObserver(metrics.ObserveInsert),
		exchange.WithInsertObserver(f.feed.Publish),
	)

	dec := decode.Func(func(_ context.Context, raw []byte) (string, error) {
		f.decodeCalls.Add(1)
		if p := f.decodeErr.Load(); p != nil {
			return "", *p
		}
		return "decoded:" + string(raw), nil
	})
	parser := signature.ParserFunc(func(raw []byte) (proto.Message, error) {
		return wrapperspb.Bytes(raw), nil
	})
	resolver := session.NewDirResolver(f.sessionsDir, nil)

	f.server = New(Options{
		Store:    f.store,
		Decoder:  decode.NewLazy(dec, decode.Options{Observer: metrics.ObserveDecode}),
		Ingestor: signature.NewIngestor(f.store, parser, signature.WithObserver(metrics.ObserveSignature)),
		Loader:   session.NewLoader(f.store, resolver, session.WithObserver(metrics.ObserveSessionLoad)),
		Sessions: resolver,
		Feed:     f.feed,
		CA:       staticCert("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"),
		Metrics:  metrics,
		Gatherer: reg,
		Version:  "test",
	})
	return f
}

func (f *fixture) addLive(t *testing.T, at time.Time, reqBody, respBody []byte) *exchange.Exchange {
	t.Helper()
	e := exchange.NewLive(at)
	e.Request.Method = http.MethodPost
	e.Request.Path = "/rpc"
	e.Request.Body = reqBody
	e.Response.Body = respBody
	require.True(t, f.store.Insert(e))
	return e
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t)
	f.addLive(t, time.Now(), []byte{1}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.sessionsDir, "morning.json"), []byte("[]"), 0o600))

	rec := f.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	index := decodeJSON[IndexResponse](t, rec)
	assert.Equal(t, 1, index.LiveCount)
	assert.Equal(t, "test", index.Version)
	require.Len(t, index.Sessions, 1)
	assert.Equal(t, "morning", index.Sessions[0].Name)

	rec = f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/no/such/route", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetails(t *testing.T) {
	f := newFixture(t)
	e := f.addLive(t, time.Now(), []byte{1, 2, 3}, nil)

	rec := f.do(t, http.MethodGet, "/details/"+e.ID().String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeJSON[exchange.Document](t, rec)
	assert.Equal(t, e.ID().String(), doc.ID)
	assert.True(t, doc.IsLive)
	assert.Equal(t, []byte{1, 2, 3}, doc.Request.Body)

	t.Run("invalid key is a bad request", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/details/not-a-guid", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeInvalidKey, decodeJSON[map[string]string](t, rec)["error"])
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/details/"+id.New().String(), nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, CodeNotFound, decodeJSON[map[string]string](t, rec)["error"])
	})
}

func TestDownloadRaw(t *testing.T) {
	f := newFixture(t)
	e := f.addLive(t, time.Now(), []byte{1, 2, 3}, nil)
	e.Request.EncryptedSignature = []byte{0xaa}
	guid := e.ID().String()

	rec := f.do(t, http.MethodGet, "/download/request/raw/"+guid, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), guid+"-request.bin")

	rec = f.do(t, http.MethodGet, "/download/rawsignature/"+guid, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{0xaa}, rec.Body.Bytes())

	for _, path := range []string{
		"/download/response/raw/" + guid,
		"/download/decryptedrawsignature/" + guid,
	} {
		rec := f.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, CodeNoData, decodeJSON[map[string]string](t, rec)["error"], path)
	}
}

func TestDownloadDecoded(t *testing.T) {
	f := newFixture(t)
	e := f.addLive(t, time.Now(), []byte("req"), nil)
	guid := e.ID().String()

	for range 2 {
		rec := f.do(t, http.MethodGet, "/download/request/decoded/"+guid, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "decoded:req", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), guid+"-request.txt")
	}
	assert.Equal(t, int32(1), f.decodeCalls.Load(), "second download is served from cache")

	rec := f.do(t, http.MethodGet, "/download/response/decoded/"+guid, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNoData, decodeJSON[map[string]string](t, rec)["error"])
	assert.Equal(t, int32(1), f.decodeCalls.Load(), "no decode without data")

	other := f.addLive(t, time.Now(), []byte("x"), nil)
	boom := errors.New("boom")
	f.decodeErr.Store(&boom)
	rec = f.do(t, http.MethodGet, "/download/request/decoded/"+other.ID().String(), nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeDecodeFailed, decodeJSON[map[string]string](t, rec)["error"])

	f.decodeErr.Store(nil)
	rec = f.do(t, http.MethodGet, "/download/request/decoded/"+other.ID().String(), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "failures are retried")
}

func TestDownloadCertAndJSON(t *testing.T) {
	f := newFixture(t)
	e := f.addLive(t, time.Now(), []byte{1}, nil)

	rec := f.do(t, http.MethodGet, "/download/cert", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-x509-ca-cert", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), DefaultCertName+".cer")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "-----BEGIN CERTIFICATE-----"))

	rec = f.do(t, http.MethodGet, "/download/json/"+e.ID().String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, e.ID().String(), decodeJSON[exchange.Document](t, rec).ID)
}

func TestDownloadCert_NoCA(t *testing.T) {
	f := newFixture(t)
	f.server.ca = nil
	rec := f.do(t, http.MethodGet, "/download/cert", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSession(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := f.addLive(t, base.Add(time.Second), []byte{2}, nil)
	first := f.addLive(t, base, []byte{1}, nil)

	rec := f.do(t, http.MethodGet, "/session/live", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	live := decodeJSON[[]exchange.Summary](t, rec)
	require.Len(t, live, 2)
	assert.Equal(t, first.ID().String(), live[0].ID)
	assert.Equal(t, second.ID().String(), live[1].ID)

	dump := `[{"id":"` + first.ID().String() + `","capturedAt":"2024-05-01T09:00:00Z"}, null,
		{"id":"6f1c2a7e-8d3b-4c5a-9e1f-0a2b3c4d5e6f","capturedAt":"2024-05-01T09:00:01Z"}]`
	require.NoError(t, os.WriteFile(filepath.Join(f.sessionsDir, "replay.json"), []byte(dump), 0o600))

	for range 2 {
		rec = f.do(t, http.MethodGet, "/session/replay", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeJSON[[]exchange.Summary](t, rec), 2)
	}
	assert.Equal(t, 3, f.store.Len())
	assert.Equal(t, 2, f.store.LiveCount(), "live entries survive an overlapping replay")

	rec = f.do(t, http.MethodGet, "/session/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeSessionNotFound, decodeJSON[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/sessions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]session.Info](t, rec), 1)
}

func TestSession_InvalidDump(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.sessionsDir, "broken.json"), []byte(`{"id":"x"}`), 0o600))

	rec := f.do(t, http.MethodGet, "/session/broken", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeInvalidSession, decodeJSON[map[string]string](t, rec)["error"])
	assert.Zero(t, f.store.Len())
}

func TestSubmitSignature(t *testing.T) {
	f := newFixture(t)
	e := f.addLive(t, time.Now(), []byte{1}, nil)
	path := "/details/signature/" + e.ID().String()

	rec := f.do(t, http.MethodPost, path, strings.NewReader(`{"bytes":"[12,255,0,7]"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	ok := decodeJSON[SignatureResult](t, rec)
	assert.True(t, ok.Success)
	assert.JSONEq(t, `"DP8ABw=="`, string(ok.Signature))
	assert.Equal(t, []byte{12, 255, 0, 7}, e.Request.Signature.Raw())

	rec = f.do(t, http.MethodPost, path, strings.NewReader(`{"bytes":"[12,300,0]"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decodeJSON[SignatureResult](t, rec)
	assert.False(t, rejected.Success)
	require.NotNil(t, rejected.Error)
	assert.Equal(t, signature.StageToken, rejected.Error.Stage)
	require.NotNil(t, rejected.Error.Index)
	assert.Equal(t, 1, *rejected.Error.Index)
	assert.Equal(t, "300", *rejected.Error.Token)
	assert.Equal(t, []byte{12, 255, 0, 7}, e.Request.Signature.Raw(), "rejection leaves stored bytes")

	form := url.Values{"bytes": {"[1,2]"}}
	rec = f.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeJSON[SignatureResult](t, rec).Success)
	assert.Equal(t, []byte{1, 2}, e.Request.Signature.Raw())

	rec = f.do(t, http.MethodGet, "/download/decryptedrawsignature/"+e.ID().String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{1, 2}, rec.Body.Bytes())
}

func TestSubmitSignature_Rejections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/details/signature/"+id.New().String(), strings.NewReader(`{"bytes":"[1]"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeJSON[SignatureResult](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, signature.StageLookup, res.Error.Stage)

	rec = f.do(t, http.MethodPost, "/details/signature/x", strings.NewReader(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/details/signature/x", strings.NewReader("other=1"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	e := f.addLive(t, time.Now(), []byte{1}, nil)
	f.do(t, http.MethodGet, "/details/"+e.ID().String(), nil, "")

	rec := f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `inspectd_exchanges_inserted_total{source="live"} 1`)
	assert.Contains(t, body, `route="GET /details/{guid}"`)
}
