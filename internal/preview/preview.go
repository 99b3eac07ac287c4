// Package preview finds a representative image for a product link.
//
// Lookups are best-effort: one attempt, bounded by a timeout and a body size
// limit. Callers are expected to treat every error as "no preview".
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultTimeout bounds the whole lookup, including reading the body.
	DefaultTimeout = 5 * time.Second

	// maxBodyBytes caps how much of a page is parsed. Preview tags live in
	// <head>, so the first couple of megabytes are plenty.
	maxBodyBytes = 2 << 20

	userAgent = "Mozilla/5.0 (compatible; WishlistPreviewBot/1.0)"
)

// ErrNoImage is returned when the page was fetched but names no image.
var ErrNoImage = errors.New("preview: no image found")

// ErrBlockedAddress is returned when a link resolves to a loopback, private
// or link-local address.
var ErrBlockedAddress = errors.New("preview: address not allowed")

// selectors are tried in order; the first non-empty attribute wins.
var selectors = []struct {
	query string
	attr  string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[property="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
	{`img[src]`, "src"},
}

// Fetcher looks up preview images over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose lookups give up after timeout. It only
// connects to public addresses, so user-supplied links cannot reach the
// server's own network.
func NewFetcher(timeout time.Duration) *Fetcher {
	return newFetcher(timeout, publicOnly)
}

// newFetcher builds the client. control vets every address the client is
// about to connect to, including redirect targets; nil allows everything.
func newFetcher(timeout time.Duration, control func(network, address string, c syscall.RawConn) error) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout, Control: control}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	// Through a proxy, control would only ever see the proxy's address.
	transport.Proxy = nil

	return &Fetcher{client: &http.Client{Timeout: timeout, Transport: transport}}
}

// publicOnly rejects connections to addresses that are not globally
// routable. It runs after DNS resolution, so address is always an IP.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

// Fetch downloads rawURL and returns the absolute URL of its preview image.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	page, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("preview: parsing url: %w", err)
	}
	if page.Scheme != "http" && page.Scheme != "https" {
		return "", fmt.Errorf("preview: unsupported scheme %q", page.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.String(), nil)
	if err != nil {
		return "", fmt.Errorf("preview: building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("preview: fetching %s: %w", page.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("preview: fetching %s: status %d", page.Host, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("preview: parsing html: %w", err)
	}

	// Redirects change the base relative URLs resolve against.
	base := resp.Request.URL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(href); err == nil {
			base = u
		}
	}

	return findImage(doc, base)
}

func findImage(doc *goquery.Document, base *url.URL) (string, error) {
	for _, sel := range selectors {
		var found string
		doc.Find(sel.query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if img, ok := resolve(base, s.AttrOr(sel.attr, "")); ok {
				found = img
				return false
			}
			return true
		})
		if found != "" {
			return found, nil
		}
	}
	return "", ErrNoImage
}

// resolve turns an attribute value into an absolute http(s) URL. Inline
// data: images are skipped; they are usually lazy-load placeholders.
func resolve(base *url.URL, val string) (string, bool) {
	val = strings.TrimSpace(val)
	if val == "" || strings.HasPrefix(val, "data:") {
		return "", false
	}
	img, err := base.Parse(val)
	if err != nil || (img.Scheme != "http" && img.Scheme != "https") {
		return "", false
	}
	return img.String(), true
}
