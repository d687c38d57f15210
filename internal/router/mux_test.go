package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/h1d/internal/ctxkeys"
	"github.com/BaSui01/h1d/internal/header"
	"github.com/BaSui01/h1d/internal/http1"
)

func newRequest(method, target string, headers ...string) *http1.Request {
	h := header.New()
	for i := 0; i+1 < len(headers); i += 2 {
		h.Insert(header.Fold(headers[i]), headers[i+1])
	}
	return &http1.Request{Method: method, Target: target, Version: "1.1", Header: h}
}

func doRoute(t *testing.T, r http1.Router, req *http1.Request) *http1.Response {
	t.Helper()
	resp := http1.NewResponse()
	require.NoError(t, r.Route(context.Background(), req, resp))
	return resp
}

func TestMux_Dispatch(t *testing.T) {
	var hit string
	h := func(name string) HandlerFunc {
		return func(_ context.Context, _ *http1.Request, resp *http1.Response) error {
			hit = name
			resp.StatusCode = http1.StatusOK
			return nil
		}
	}
	m := NewMux().
		Handle("GET", "/", h("root")).
		HandlePrefix("GET", "/files/", h("files")).
		Handle("POST", "/files", h("upload")).
		Handle("DELETE", "/files", h("delete"))

	tests := []struct {
		method, target string
		status         int
		hit            string
		allow          string
	}{
		{"GET", "/", 200, "root", ""},
		{"GET", "/?q=1", 200, "root", ""},
		{"GET", "/files/a.txt", 200, "files", ""},
		{"POST", "/files", 200, "upload", ""},
		{"DELETE", "/files", 200, "delete", ""},
		{"GET", "/files", 405, "", "POST, DELETE"},
		{"POST", "/files/a.txt", 405, "", "GET"},
		{"GET", "/nope", 404, "", ""},
		{"PUT", "/nope", 404, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			hit = ""
			resp := doRoute(t, m, newRequest(tt.method, tt.target))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.hit, hit)
			allow, _ := resp.Header.Lookup("allow")
			assert.Equal(t, tt.allow, allow)
		})
	}
}

func TestMux_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	m := NewMux().Handle("GET", "/x", func(context.Context, *http1.Request, *http1.Response) error {
		return boom
	})
	err := m.Route(context.Background(), newRequest("GET", "/x"), http1.NewResponse())
	assert.ErrorIs(t, err, boom)
}

func TestMux_NotFoundBody(t *testing.T) {
	resp := doRoute(t, NewMux(), newRequest("GET", "/missing"))
	assert.Equal(t, http1.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found\n", string(resp.Body))

	wire, err := http1.Serialize(resp, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(wire), "HTTP/1.1 404 Not Found\r\n"))
}

func TestDefault_Handlers(t *testing.T) {
	m := Default(BuildInfo{Version: "1.2.3", GitCommit: "abc"}, time.Now().Add(-time.Minute))

	t.Run("root", func(t *testing.T) {
		resp := doRoute(t, m, newRequest("GET", "/"))
		assert.Equal(t, 200, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})

	t.Run("echo", func(t *testing.T) {
		resp := doRoute(t, m, newRequest("GET", "/echo/abc"))
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "abc", string(resp.Body))
		ct, _ := resp.Header.Lookup("content-type")
		assert.Equal(t, "text/plain", ct)
	})

	t.Run("user-agent", func(t *testing.T) {
		resp := doRoute(t, m, newRequest("GET", "/user-agent", "User-Agent", "foobar/1.2.3"))
		assert.Equal(t, "foobar/1.2.3", string(resp.Body))
	})

	t.Run("echo body", func(t *testing.T) {
		req := newRequest("POST", "/echo", "Content-Type", "application/json; charset=utf-8")
		req.Body = []byte(`{"a":1}`)
		resp := doRoute(t, m, req)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, `{"a":1}`, string(resp.Body))
		ct, _ := resp.Header.Lookup("content-type")
		assert.Equal(t, "application/json; charset=utf-8", ct)
	})

	t.Run("echo body unsupported media type", func(t *testing.T) {
		req := newRequest("POST", "/echo", "Content-Type", "image/png")
		req.Body = []byte{0x89}
		resp := doRoute(t, m, req)
		assert.Equal(t, http1.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("health", func(t *testing.T) {
		req := newRequest("GET", "/health")
		resp := http1.NewResponse()
		ctx := ctxkeys.WithRequestSeq(ctxkeys.WithConnID(context.Background(), "c-9"), 4)
		require.NoError(t, m.Route(ctx, req, resp))

		var body HealthResponse
		require.NoError(t, json.Unmarshal(resp.Body, &body))
		assert.Equal(t, "ok", body.Status)
		assert.GreaterOrEqual(t, body.Uptime, 60.0)
		assert.Equal(t, "c-9", body.ConnID)
		assert.Equal(t, 4, body.RequestNo)
	})

	t.Run("version", func(t *testing.T) {
		resp := doRoute(t, m, newRequest("GET", "/version"))
		var body VersionResponse
		require.NoError(t, json.Unmarshal(resp.Body, &body))
		assert.Equal(t, "1.2.3", body.Version)
		assert.Equal(t, "abc", body.GitCommit)
		assert.NotEmpty(t, body.GoVersion)
	})
}
