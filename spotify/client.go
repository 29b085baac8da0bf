// Package spotify reads the user's current playback state, falling back to
// the most recently played track when nothing is active.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL  = "https://api.spotify.com"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Track is the normalized playback observation. ID plus the playing flag
// identify it: a pause or resume of the same track is a user-visible change
// worth surfacing, cosmetic metadata is not.
type Track struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`
	ArtURL    string `json:"art_url,omitempty"`
	URL       string `json:"url,omitempty"`
	IsPlaying bool   `json:"is_playing"`
}

// Equal reports whether two tracks are the same playback observation.
func Equal(a, b *Track) bool {
	return a.ID == b.ID && a.IsPlaying == b.IsPlaying
}

// Credentials holds the refresh-token grant inputs. The refresh token is
// obtained once out of band; the client mints access tokens from it as needed.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

type Client struct {
	http     *http.Client
	baseURL  *url.URL
	tokenURL string
}

type Option func(*Client)

// WithHTTPClient replaces the token-refreshing client entirely; used by tests
// to talk to a mock upstream without OAuth.
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

func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, errors.New("client id, client secret and refresh token required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{baseURL: u, tokenURL: DefaultTokenURL}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		conf := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: c.tokenURL},
		}
		ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
		c.http = oauth2.NewClient(ctx, ts)
		c.http.Timeout = 20 * time.Second
	}
	return c, nil
}

// FetchLatest returns the active playback if there is one, otherwise the most
// recently played track, and nil when the account has no playback history at
// all. Stale-serving on failure is the caller's concern, not the adapter's.
func (c *Client) FetchLatest(ctx context.Context) (*Track, error) {
	track, err := c.currentlyPlaying(ctx)
	if err != nil {
		return nil, err
	}
	if track != nil {
		return track, nil
	}
	return c.recentlyPlayed(ctx)
}

func (c *Client) currentlyPlaying(ctx context.Context) (*Track, error) {
	var state playerStateJSON
	status, err := c.getJSON(ctx, "/v1/me/player/currently-playing", nil, &state)
	if err != nil {
		return nil, err
	}
	// 204 means no active device; an episode or local file leaves item null.
	if status == http.StatusNoContent || state.Item == nil {
		return nil, nil
	}
	return normalize(state.Item, state.IsPlaying), nil
}

func (c *Client) recentlyPlayed(ctx context.Context) (*Track, error) {
	var rp recentlyPlayedJSON
	_, err := c.getJSON(ctx, "/v1/me/player/recently-played", map[string]string{"limit": "1"}, &rp)
	if err != nil {
		return nil, err
	}
	if len(rp.Items) == 0 {
		return nil, nil
	}
	return normalize(&rp.Items[0].Track, false), nil
}

func (c *Client) getJSON(ctx context.Context, p string, q map[string]string, out any) (int, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	qq := u.Query()
	for k, v := range q {
		qq.Set(k, v)
	}
	u.RawQuery = qq.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", p, err)
		}
		return resp.StatusCode, nil
	default:
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("GET %s: %s: %s", p, resp.Status, string(b))
	}
}

func normalize(t *trackJSON, playing bool) *Track {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	track := &Track{
		ID:        t.ID,
		Title:     t.Name,
		Artist:    strings.Join(names, ", "),
		Album:     t.Album.Name,
		URL:       t.ExternalURLs["spotify"],
		IsPlaying: playing,
	}
	if len(t.Album.Images) > 0 {
		track.ArtURL = t.Album.Images[0].URL
	}
	return track
}
