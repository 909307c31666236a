package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingbot/internal/listing"
	"listingbot/pkg/logx"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{URL: url, Timeout: timeout, MinGap: time.Millisecond, Burst: 10}, logx.Nop())
	require.NoError(t, err)
	return c
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchParsesProducts(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"products":[
		{"id":"p1","name":"Booster Box","price":"$143.64","url":"https://shop.example/p1","image":"https://img.example/p1.png","description":"36 packs"},
		{"sku":"s2","name":"Elite Trainer Box","price":49.99},
		{"id":null,"sku":"s3"},
		{"name":"no identity"},
		{"id":7,"name":"Numeric","price":null}
	]}`)

	set, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "s2", "s3", "7"}, set.Keys())

	p1, _ := set.Get("p1")
	assert.Equal(t, "Booster Box", p1.Name)
	assert.Equal(t, "$143.64", p1.Price)
	assert.Equal(t, "https://img.example/p1.png", p1.Image)
	assert.False(t, p1.CapturedAt.IsZero())

	s2, _ := set.Get("s2")
	assert.Equal(t, "49.99", s2.Price)
	assert.Empty(t, s2.URL)

	s3, _ := set.Get("s3")
	assert.Equal(t, "Unknown", s3.Name)
	assert.Equal(t, listing.NoPrice, s3.Price)
	assert.False(t, s3.HasPrice())

	n, _ := set.Get("7")
	assert.Equal(t, listing.NoPrice, n.Price)
}

func TestFetchSendsHeaders(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	set, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, defaultUserAgent, ua)
	assert.Equal(t, "application/json", accept)
}

func TestFetchFailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"server error", http.StatusInternalServerError, `oops`, KindHTTP},
		{"not found", http.StatusNotFound, `{}`, KindHTTP},
		{"not json", http.StatusOK, `<html>`, KindPayload},
		{"missing products", http.StatusOK, `{"items":[]}`, KindPayload},
		{"products not array", http.StatusOK, `{"products":{"a":1}}`, KindPayload},
		{"product not object", http.StatusOK, `{"products":["x"]}`, KindPayload},
		{"top level array", http.StatusOK, `[1,2]`, KindPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			set, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
			assert.Nil(t, set)

			var fe *FetchError
			require.True(t, errors.As(err, &fe), "got %T", err)
			assert.Equal(t, tt.kind, fe.Kind)
			if tt.kind == KindHTTP {
				assert.Equal(t, tt.status, fe.Status)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(t, srv.URL, 50*time.Millisecond).Fetch(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindTimeout, fe.Kind)
}

func TestFetchUnreachable(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"products":[]}`)
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, time.Second).Fetch(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindHTTP, fe.Kind)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{URL: "  "}, logx.Logger{})
	assert.Error(t, err)
}

func TestProductIDFallsBackOnFalsyID(t *testing.T) {
	set, skipped, err := Parse([]byte(`{"products":[{"id":"","sku":"a"},{"id":0,"sku":"b"},{"id":false}]}`), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.Keys())
	assert.Equal(t, 1, skipped)
}
