package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servePage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// localFetcher may connect to the loopback test servers.
func localFetcher(timeout time.Duration) *Fetcher {
	return newFetcher(timeout, nil)
}

func TestFetch_Selectors(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og:image wins over everything",
			html: `<html><head>
				<meta name="twitter:image" content="https://cdn.example.com/tw.jpg">
				<meta property="og:image" content="https://cdn.example.com/og.jpg">
				</head><body><img src="/first.png"></body></html>`,
			want: "https://cdn.example.com/og.jpg",
		},
		{
			name: "twitter:image when og is missing",
			html: `<head><meta name="twitter:image" content="https://cdn.example.com/tw.jpg"></head>`,
			want: "https://cdn.example.com/tw.jpg",
		},
		{
			name: "image_src link",
			html: `<head><link rel="image_src" href="https://cdn.example.com/src.jpg"></head>`,
			want: "https://cdn.example.com/src.jpg",
		},
		{
			name: "first img as a last resort",
			html: `<body><img src="data:image/gif;base64,R0lGOD"><img src="https://cdn.example.com/a.png"></body>`,
			want: "https://cdn.example.com/a.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := servePage(t, http.StatusOK, tt.html)

			got, err := localFetcher(time.Second).Fetch(context.Background(), srv.URL+"/product/42")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch_ResolvesRelativeURLs(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<head><meta property="og:image" content="/img/headphones.jpg"></head>`)

	got, err := localFetcher(time.Second).Fetch(context.Background(), srv.URL+"/p/headphones")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/img/headphones.jpg", got)
}

func TestFetch_HonoursBaseHref(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<head><base href="https://static.example.com/shop/"><meta property="og:image" content="hp.jpg"></head>`)

	got, err := localFetcher(time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://static.example.com/shop/hp.jpg", got)
}

func TestFetch_NoImage(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<html><body><p>nothing to see</p></body></html>`)

	_, err := localFetcher(time.Second).Fetch(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrNoImage), "want ErrNoImage, got %v", err)
}

func TestFetch_Failures(t *testing.T) {
	notFound := servePage(t, http.StatusNotFound, `<meta property="og:image" content="https://x/y.jpg">`)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)

	tests := []struct {
		name string
		url  string
	}{
		{"non-200", notFound.URL},
		{"timeout", slow.URL},
		{"unsupported scheme", "ftp://example.com/file"},
		{"not a url", "://nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := localFetcher(100*time.Millisecond).Fetch(context.Background(), tt.url)
			assert.Error(t, err)
		})
	}
}

func TestFetch_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<meta property="og:image" content="https://x.example/y.jpg">`))
	}))
	t.Cleanup(srv.Close)

	_, err := localFetcher(time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.Contains(gotUA, "WishlistPreviewBot"), "User-Agent = %q", gotUA)
}

func TestFetch_RefusesLoopback(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<meta property="og:image" content="https://cdn.example.com/og.jpg">`)

	_, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlockedAddress), "got %v", err)
}

func TestPublicOnly(t *testing.T) {
	tests := []struct {
		address string
		allowed bool
	}{
		{"93.184.216.34:443", true},
		{"[2606:2800:220:1:248:1893:25c8:1946]:443", true},
		{"127.0.0.1:80", false},
		{"[::1]:80", false},
		{"10.1.2.3:80", false},
		{"172.16.0.1:80", false},
		{"192.168.1.1:80", false},
		{"169.254.169.254:80", false},
		{"[fe80::1]:80", false},
		{"[fd00::1]:80", false},
		{"0.0.0.0:80", false},
		{"[::ffff:127.0.0.1]:80", false},
		{"not-an-address", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := publicOnly("tcp", tt.address, nil)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrBlockedAddress), "got %v", err)
			}
		})
	}
}
