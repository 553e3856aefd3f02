// Package portal reads lot listings, lot names and attachment links from the tender portal's HTML.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a selector matches nothing on a page.
var ErrNotFound = errors.New("element not found")

// Fetcher returns the body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Selectors are the CSS selectors for the portal's pages.
type Selectors struct {
	LotList     string // anchors to lot pages on a search results page
	LotName     string // lot title element on a lot page
	ArchiveLink string // the single "download all" anchor on a lot page
	FileLinks   string // per-file anchors on a lot page
}

// Client reads portal pages through a Fetcher.
type Client struct {
	fetcher   Fetcher
	selectors Selectors
	itemized  bool
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithItemized makes DownloadLinks return one link per attached file instead of the archive link.
func WithItemized(itemized bool) Option {
	return func(c *Client) { c.itemized = itemized }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a Client.
func NewClient(f Fetcher, sel Selectors, opts ...Option) *Client {
	c := &Client{fetcher: f, selectors: sel, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// page is a parsed document whose links resolve against the site root.
type page struct {
	doc  *goquery.Document
	root *url.URL
}

func (c *Client) load(ctx context.Context, rawURL string) (*page, error) {
	body, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", rawURL, err)
	}
	root, err := SiteRoot(rawURL)
	if err != nil {
		return nil, err
	}
	return &page{doc: doc, root: root}, nil
}

// links returns the absolute href of every element matching sel, in document order.
func (p *page) links(sel string) []string {
	var out []string
	p.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		out = append(out, p.root.ResolveReference(ref).String())
	})
	return out
}

// ListLots returns the lot page URLs listed on a search results page.
func (c *Client) ListLots(ctx context.Context, queryURL string) ([]string, error) {
	c.logger.Info("running query", zap.String("url", queryURL))
	p, err := c.load(ctx, queryURL)
	if err != nil {
		return nil, err
	}
	lots := p.links(c.selectors.LotList)
	if lots == nil {
		lots = []string{}
	}
	return lots, nil
}

// LotName returns the display name shown on a lot page.
func (c *Client) LotName(ctx context.Context, lotURL string) (string, error) {
	p, err := c.load(ctx, lotURL)
	if err != nil {
		return "", err
	}
	sel := p.doc.Find(c.selectors.LotName)
	if sel.Length() == 0 {
		return "", fmt.Errorf("lot name on %s: %w", lotURL, ErrNotFound)
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

// DownloadLinks returns the attachment URLs of a lot: the single archive link, or every file link
// in itemized mode.
func (c *Client) DownloadLinks(ctx context.Context, lotURL string) ([]string, error) {
	p, err := c.load(ctx, lotURL)
	if err != nil {
		return nil, err
	}
	if c.itemized {
		return p.links(c.selectors.FileLinks), nil
	}
	links := p.links(c.selectors.ArchiveLink)
	if len(links) == 0 {
		return nil, fmt.Errorf("archive link on %s: %w", lotURL, ErrNotFound)
	}
	return links[:1], nil
}

// SiteRoot returns scheme://host/ of rawURL.
func SiteRoot(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}
