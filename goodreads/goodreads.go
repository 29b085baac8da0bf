// Package goodreads reads the single most recent book from a public
// Goodreads shelf via its RSS feed.
package goodreads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	DefaultBaseURL = "https://www.goodreads.com"
	DefaultShelf   = "currently-reading"

	userAgent = "nowapi/1.0 (+github.com/jcalloway/nowapi)"
)

// Book is the normalized reading-list observation. Title and author identify
// the book; the rest is display payload.
type Book struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	CoverURL string `json:"cover_url,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Equal reports whether two books are the same reading-list entry. Cover art
// and links churn upstream without the book itself changing, so only title
// and author participate, compared exactly.
func Equal(a, b *Book) bool {
	return a.Title == b.Title && a.Author == b.Author
}

type Client struct {
	http    *http.Client
	baseURL *url.URL
	parser  *gofeed.Parser
	userID  string
	shelf   string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

func New(userID, shelf string, opts ...Option) (*Client, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}
	if shelf == "" {
		shelf = DefaultShelf
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    &http.Client{Timeout: 20 * time.Second},
		baseURL: u,
		parser:  gofeed.NewParser(),
		userID:  userID,
		shelf:   shelf,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// FetchLatest returns the first book on the shelf, nil when the shelf is
// empty, and an error when the feed is unreachable or malformed.
func (c *Client) FetchLatest(ctx context.Context) (*Book, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, "review/list_rss", c.userID)
	q := u.Query()
	q.Set("shelf", c.shelf)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch shelf feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shelf feed status %d", resp.StatusCode)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse shelf feed: %w", err)
	}

	if len(feed.Items) == 0 {
		// Feed present but empty: the shelf has nothing on it.
		return nil, nil
	}

	return bookFromItem(feed.Items[0]), nil
}

func bookFromItem(item *gofeed.Item) *Book {
	b := &Book{
		Title: strings.TrimSpace(item.Title),
		Link:  item.Link,
	}

	// Goodreads puts its fields in non-namespaced RSS extensions.
	if author := item.Custom["author_name"]; author != "" {
		b.Author = strings.TrimSpace(author)
	} else if item.Author != nil {
		b.Author = strings.TrimSpace(item.Author.Name)
	}

	if cover := item.Custom["book_large_image_url"]; cover != "" {
		b.CoverURL = cover
	} else if cover := item.Custom["book_image_url"]; cover != "" {
		b.CoverURL = cover
	} else if item.Image != nil {
		b.CoverURL = item.Image.URL
	}

	return b
}
