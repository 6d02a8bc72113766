package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/fetch"
)

const maxDerivedTitleRunes = 200

var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"yclid":   true,
	"mc_cid":  true,
	"mc_eid":  true,
	"igshid":  true,
	"ref":     true,
	"ref_src": true,
	"_ga":     true,
	"spm":     true,
}

// Candidate is a normalized document that has not been scored yet.
type Candidate struct {
	SourceID    string
	URL         string
	Title       string
	Summary     string
	Body        string
	ContentHash string
	DedupKey    string
	PublishedAt *time.Time
}

// CanonicalURL resolves raw against base and strips everything that doesn't
// identify the resource: fragment, default port, tracking parameters and a
// trailing slash. Remaining query parameters are sorted.
func CanonicalURL(raw string, base *url.URL) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host")
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.ForceQuery = false

	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = ""
	}

	return u.String(), nil
}

// Prepare canonicalizes doc for source. It does not consult the store.
func Prepare(doc fetch.RawDocument, source database.Source) (*Candidate, error) {
	body := PlainText(doc.Body)
	if body == "" {
		return nil, &apperr.ValidationError{Kind: apperr.EmptyContent, URL: doc.URL}
	}

	var base *url.URL
	if source.URL != "" {
		base, _ = url.Parse(source.URL)
	}

	canonical, err := CanonicalURL(doc.URL, base)
	if err != nil {
		canonical = ""
	}

	title := collapse(PlainText(doc.Title))
	if title == "" {
		title = deriveTitle(body)
	}

	c := &Candidate{
		SourceID:    source.ID,
		URL:         canonical,
		Title:       title,
		Summary:     collapse(PlainText(doc.Summary)),
		Body:        body,
		PublishedAt: doc.PublishedAt,
	}
	c.ContentHash = hashOf(c.Title, c.Body)

	if canonical == "" || source.Dedup() == database.DedupByContent {
		c.DedupKey = hashOf(source.ID, "content", c.ContentHash)
	} else {
		c.DedupKey = hashOf(source.ID, "url", canonical)
	}

	return c, nil
}

// PlainText strips markup and normalizes whitespace, keeping one line per
// block element.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style, noscript").Remove()
			doc.Find("p, div, br, li, tr, h1, h2, h3, h4, h5, h6, blockquote, article, section").AppendHtml("\n")
			s = doc.Text()
		}
	}

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = collapse(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func deriveTitle(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	if utf8.RuneCountInString(line) <= maxDerivedTitleRunes {
		return line
	}
	return string([]rune(line)[:maxDerivedTitleRunes])
}

func hashOf(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
