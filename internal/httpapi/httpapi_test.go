package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingbot/internal/monitor"
	"listingbot/pkg/logx"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeBackend struct {
	status Status
	result monitor.Result
	checks int
}

func (f *fakeBackend) Status() Status { return f.status }

func (f *fakeBackend) CheckNow(context.Context) monitor.Result {
	f.checks++
	return f.result
}

func serve(t *testing.T, r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := NewRouter(NewHandler(&fakeBackend{}), "secret", logx.Nop())
	w := serve(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatusRequiresToken(t *testing.T) {
	b := &fakeBackend{status: Status{Cached: 12, Interval: 300, ChatID: -100}}
	r := NewRouter(NewHandler(b), "secret", logx.Nop())

	assert.Equal(t, http.StatusUnauthorized, serve(t, r, http.MethodGet, "/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, r, http.MethodGet, "/status", "wrong").Code)

	w := serve(t, r, http.MethodGet, "/status", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	var got Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 12, got.Cached)
	assert.Equal(t, int64(300), got.Interval)
	assert.Equal(t, int64(-100), got.ChatID)
}

func TestStatusWithoutToken(t *testing.T) {
	r := NewRouter(NewHandler(&fakeBackend{}), "", logx.Nop())
	assert.Equal(t, http.StatusOK, serve(t, r, http.MethodGet, "/status", "").Code)
}

func TestCheckStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		result monitor.Result
		code   int
	}{
		{"ok", monitor.Result{Status: monitor.StatusOK, Fetched: 3, New: 1, Delivered: 1}, http.StatusOK},
		{"skipped", monitor.Result{Status: monitor.StatusSkipped}, http.StatusConflict},
		{"no target", monitor.Result{Status: monitor.StatusNoTarget}, http.StatusConflict},
		{"fetch failed", monitor.Result{Status: monitor.StatusFetchFailed, FetchErr: errors.New("fetch timeout")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{result: tt.result}
			r := NewRouter(NewHandler(b), "", logx.Nop())
			w := serve(t, r, http.MethodPost, "/check", "")
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, 1, b.checks)

			var got Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, string(tt.result.Status), got.Status)
			if tt.result.FetchErr != nil {
				assert.Equal(t, "fetch timeout", got.FetchError)
			}
		})
	}
}

func TestCheckRejectsGet(t *testing.T) {
	r := NewRouter(NewHandler(&fakeBackend{}), "", logx.Nop())
	assert.Equal(t, http.StatusNotFound, serve(t, r, http.MethodGet, "/check", "").Code)
}

func TestServerApply(t *testing.T) {
	s := NewServer(&fakeBackend{}, logx.Nop())
	ctx := context.Background()

	require.NoError(t, s.Apply(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"}))
	addr := s.Addr()
	require.NotEmpty(t, addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	require.NoError(t, s.Apply(ctx, Config{Enabled: false}))
	assert.Empty(t, s.Addr())
	_, err = client.Get("http://" + addr + "/healthz")
	assert.Error(t, err)
}

func TestPprofBehindToken(t *testing.T) {
	r := newRouter(NewHandler(&fakeBackend{}), Config{Token: "secret", Pprof: true}, logx.Nop())
	assert.Equal(t, http.StatusUnauthorized, serve(t, r, http.MethodGet, "/debug/pprof/cmdline", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, r, http.MethodGet, "/debug/pprof/cmdline", "secret").Code)

	off := NewRouter(NewHandler(&fakeBackend{}), "secret", logx.Nop())
	assert.Equal(t, http.StatusNotFound, serve(t, off, http.MethodGet, "/debug/pprof/cmdline", "secret").Code)
}
