// Package config handles application configuration from environment variables
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	Store     StoreConfig
	Goodreads GoodreadsConfig
	Spotify   SpotifyConfig
}

// StoreConfig selects the cache store backend
type StoreConfig struct {
	Driver   string `env:"STORE_DRIVER" envDefault:"redis"` // "redis" or "bolt"
	BoltPath string `env:"STORE_BOLT_PATH" envDefault:"nowapi.db"`
}

// GoodreadsConfig holds reading-list source configuration
type GoodreadsConfig struct {
	UserID string `env:"GOODREADS_USER_ID"`
	Shelf  string `env:"GOODREADS_SHELF" envDefault:"currently-reading"`
}

// SpotifyConfig holds playback source configuration
type SpotifyConfig struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	RefreshToken string `env:"SPOTIFY_REFRESH_TOKEN"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// HasGoodreads returns true if the reading-list source is configured
func (c Config) HasGoodreads() bool {
	return c.Goodreads.UserID != ""
}

// HasSpotify returns true if the playback source is configured
func (c Config) HasSpotify() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" && c.Spotify.RefreshToken != ""
}

// Validate ensures the configuration has at least one source configured
func (c Config) Validate() error {
	if !c.HasGoodreads() && !c.HasSpotify() {
		return fmt.Errorf("no sources configured - please set environment variables for at least one source")
	}
	switch c.Store.Driver {
	case "redis", "bolt":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}
