package spotify

// Wire shapes for the two player endpoints, trimmed to the fields we keep.

type playerStateJSON struct {
	IsPlaying bool       `json:"is_playing"`
	Item      *trackJSON `json:"item"`
}

type recentlyPlayedJSON struct {
	Items []struct {
		Track trackJSON `json:"track"`
	} `json:"items"`
}

type trackJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"images"`
	} `json:"album"`
	ExternalURLs map[string]string `json:"external_urls"`
}
