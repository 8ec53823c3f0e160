package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/owlfest/aggregator/internal/resilience"
)

// HTMLExtractor pulls zero or more RawRecords out of a parsed listing page,
// and returns the next-page URL (empty when there is none). It is the only
// portal-specific piece of an HTMLAdapter; everything else (rate limiting,
// retrying, paging loop) is shared.
type HTMLExtractor func(doc *html.Node, pageURL string) (records []RawRecord, nextPageURL string)

// HTMLAdapterConfig configures an HTMLAdapter.
type HTMLAdapterConfig struct {
	Name         string
	StartURL     string
	UserAgent    string
	RequestDelay time.Duration
	Timeout      time.Duration
	MaxRetries   int
	MaxPages     int
	Extract      HTMLExtractor
}

// HTMLAdapter scrapes a portal that only exposes server-rendered HTML,
// following pages via links discovered on the current page, grounded on the
// teacher's ResidentAdvisorScraper (rate-limited MakeRequest + x/net/html
// parsing) but generalized so the page-to-page navigation and record
// extraction are supplied per portal via Extract.
type HTMLAdapter struct {
	cfg         HTMLAdapterConfig
	httpClient  *http.Client
	rateLimiter *resilience.RateLimiter
}

// NewHTMLAdapter constructs an HTMLAdapter with defaults applied.
func NewHTMLAdapter(cfg HTMLAdapterConfig) *HTMLAdapter {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "OwlfestBot/1.0 (+https://owlfest.example/bot)"
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 20
	}
	return &HTMLAdapter{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: resilience.NewRateLimiter(cfg.RequestDelay),
	}
}

// Name implements Adapter.
func (a *HTMLAdapter) Name() string { return a.cfg.Name }

// Fetch implements Adapter.
func (a *HTMLAdapter) Fetch(ctx context.Context, cap int) ([]RawRecord, error) {
	var all []RawRecord
	pageURL := a.cfg.StartURL

	for page := 0; page < a.cfg.MaxPages && pageURL != ""; page++ {
		if cap > 0 && len(all) >= cap {
			break
		}

		doc, err := a.fetchDoc(ctx, pageURL)
		if err != nil {
			return all, fmt.Errorf("%s: fetch page %q: %w", a.cfg.Name, pageURL, err)
		}

		records, next := a.cfg.Extract(doc, pageURL)
		all = append(all, records...)
		pageURL = next
	}

	if cap > 0 && len(all) > cap {
		all = all[:cap]
	}
	return all, nil
}

func (a *HTMLAdapter) fetchDoc(ctx context.Context, pageURL string) (*html.Node, error) {
	var doc *html.Node
	err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: a.cfg.MaxRetries}, func() error {
		var err error
		doc, err = a.doRequest(ctx, pageURL)
		return err
	})
	return doc, err
}

func (a *HTMLAdapter) doRequest(ctx context.Context, pageURL string) (*html.Node, error) {
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, classifyHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, classifyHTTPStatus(resp.StatusCode)
	}

	return html.Parse(resp.Body)
}

// ResolveURL joins base and ref the way the teacher's BaseScraper.NormalizeURL
// does, returning ref unchanged if either fails to parse.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// ExtractText collapses whitespace the way the teacher's
// BaseScraper.ExtractText does.
func ExtractText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\t", " ")
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return text
}

// HasClass reports whether an html.Node carries the given CSS class.
func HasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// Attr returns the value of the named attribute, or "" if absent.
func Attr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// TextContent concatenates all text node descendants of n.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return ExtractText(sb.String())
}

// FindAll walks doc depth-first collecting every node for which match
// returns true.
func FindAll(doc *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}
