// Package fetcher pulls review text out of web pages.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultTimeout  = 30 * time.Second
	maxBodyBytes    = 5 * 1024 * 1024
	defaultMaxChars = 10 * 1024
	userAgent       = "sentimen/1.0 (review-analysis)"
)

// ErrBlockedAddress is returned for URLs that resolve to loopback, private or link-local hosts
var ErrBlockedAddress = errors.New("address not allowed")

// Page is the readable content of a fetched URL
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Fetcher downloads pages and extracts their text
type Fetcher struct {
	client       *http.Client
	maxChars     int
	allowPrivate bool
}

// Option configures a Fetcher
type Option func(*Fetcher)

// AllowPrivate lets the fetcher reach loopback and private networks
func AllowPrivate(allow bool) Option {
	return func(f *Fetcher) { f.allowPrivate = allow }
}

// New creates a Fetcher; a zero timeout uses the default.
// Fetches run server side, so internal addresses are refused unless AllowPrivate is set.
func New(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	f := &Fetcher{maxChars: defaultMaxChars}
	for _, opt := range opts {
		opt(f)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !f.allowPrivate {
		// Checked after DNS resolution, on the address actually dialed
		dialer := &net.Dialer{Timeout: timeout, Control: refusePrivate}
		transport.DialContext = dialer.DialContext
		transport.Proxy = nil
	}
	f.client = &http.Client{Timeout: timeout, Transport: transport}
	return f
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// Fetch retrieves URL content and extracts readable text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page, err := Extract(string(body), f.maxChars)
	if err != nil {
		return nil, err
	}
	page.URL = u.String()
	return page, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \n\t") {
		return false
	}
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

func normalizeURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "www.") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}
	return u, nil
}

// non-content elements
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true, "form": true,
}

// Extract parses an HTML document into its title and readable text,
// truncated to maxChars runes when maxChars > 0.
func Extract(htmlContent string, maxChars int) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		sb    strings.Builder
		title string
		walk  func(*html.Node)
	)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
			if skipTags[n.Data] {
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.Join(strings.Fields(sb.String()), " ")
	if text == "" {
		return nil, fmt.Errorf("no text content found")
	}

	if runes := []rune(text); maxChars > 0 && len(runes) > maxChars {
		text = string(runes[:maxChars]) + "..."
	}

	return &Page{Title: title, Text: text}, nil
}
