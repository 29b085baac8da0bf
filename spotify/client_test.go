package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const nowPlayingBody = `{
  "is_playing": true,
  "item": {
    "id": "T1",
    "name": "Paranoid Android",
    "artists": [{"name": "Radiohead"}],
    "album": {
      "name": "OK Computer",
      "images": [{"url": "https://i.scdn.co/image/ok_640.jpg", "width": 640, "height": 640}]
    },
    "external_urls": {"spotify": "https://open.spotify.com/track/T1"}
  }
}`

const recentlyPlayedBody = `{
  "items": [
    {"track": {
      "id": "T2",
      "name": "Pyramid Song",
      "artists": [{"name": "Radiohead"}],
      "album": {"name": "Amnesiac", "images": []},
      "external_urls": {"spotify": "https://open.spotify.com/track/T2"}
    }}
  ]
}`

// mockPlayer stands in for the two player endpoints.
type mockPlayer struct {
	currentStatus int
	currentBody   string
	recentStatus  int
	recentBody    string
}

func (m *mockPlayer) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(m.currentStatus)
		_, _ = w.Write([]byte(m.currentBody))
	})
	mux.HandleFunc("/v1/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("limit"))
		w.WriteHeader(m.recentStatus)
		_, _ = w.Write([]byte(m.recentBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(context.Background(),
		Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh"},
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
	)
	require.NoError(t, err)
	return c
}

func TestFetchLatestActivePlayback(t *testing.T) {
	srv := (&mockPlayer{currentStatus: http.StatusOK, currentBody: nowPlayingBody}).server(t)
	c := newTestClient(t, srv)

	track, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, track)
	require.Equal(t, "T1", track.ID)
	require.Equal(t, "Paranoid Android", track.Title)
	require.Equal(t, "Radiohead", track.Artist)
	require.Equal(t, "OK Computer", track.Album)
	require.Equal(t, "https://i.scdn.co/image/ok_640.jpg", track.ArtURL)
	require.Equal(t, "https://open.spotify.com/track/T1", track.URL)
	require.True(t, track.IsPlaying)
}

func TestFetchLatestPausedPlaybackStillReports(t *testing.T) {
	body := `{"is_playing": false, "item": {"id": "T1", "name": "Paranoid Android", "artists": [], "album": {"name": "", "images": []}, "external_urls": {}}}`
	srv := (&mockPlayer{currentStatus: http.StatusOK, currentBody: body}).server(t)
	c := newTestClient(t, srv)

	track, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, track)
	require.Equal(t, "T1", track.ID)
	require.False(t, track.IsPlaying)
}

func TestFetchLatestFallsBackToRecentlyPlayed(t *testing.T) {
	srv := (&mockPlayer{
		currentStatus: http.StatusNoContent,
		recentStatus:  http.StatusOK,
		recentBody:    recentlyPlayedBody,
	}).server(t)
	c := newTestClient(t, srv)

	track, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, track)
	require.Equal(t, "T2", track.ID)
	require.False(t, track.IsPlaying)
}

func TestFetchLatestNoHistoryReportsNothing(t *testing.T) {
	srv := (&mockPlayer{
		currentStatus: http.StatusNoContent,
		recentStatus:  http.StatusOK,
		recentBody:    `{"items": []}`,
	}).server(t)
	c := newTestClient(t, srv)

	track, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	require.Nil(t, track)
}

func TestFetchLatestUpstreamErrorFails(t *testing.T) {
	srv := (&mockPlayer{currentStatus: http.StatusBadGateway, currentBody: "oops"}).server(t)
	c := newTestClient(t, srv)

	_, err := c.FetchLatest(context.Background())
	require.Error(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Credentials{ClientID: "id"})
	require.Error(t, err)
}

func TestEqualTracksPlayingState(t *testing.T) {
	playing := &Track{ID: "T1", IsPlaying: true, ArtURL: "a.jpg"}
	paused := &Track{ID: "T1", IsPlaying: false}
	require.False(t, Equal(playing, paused))

	same := &Track{ID: "T1", IsPlaying: true, ArtURL: "b.jpg"}
	require.True(t, Equal(playing, same))
}
