// cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/jcalloway/nowapi/goodreads"
	"github.com/jcalloway/nowapi/internal/cache"
	"github.com/jcalloway/nowapi/internal/config"
	"github.com/jcalloway/nowapi/internal/http/routes"
	"github.com/jcalloway/nowapi/internal/jobs"
	"github.com/jcalloway/nowapi/spotify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("instance", uuid.NewString()).
		Logger()
	log.Printf("starting api on :%s", cfg.Port)

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}

	var opts routes.ServerOptions

	if cfg.HasGoodreads() {
		gr, err := goodreads.New(cfg.Goodreads.UserID, cfg.Goodreads.Shelf)
		if err != nil {
			log.Fatalf("goodreads error: %v", err)
		}
		reading, err := cache.New(store, gr, cache.Options[goodreads.Book]{
			Key:             jobs.ReadingKey,
			Freshness:       jobs.ReadingFreshness,
			MinPollInterval: jobs.ReadingPollInterval,
			StoreTTL:        jobs.ReadingStoreTTL,
			Equal:           goodreads.Equal,
		}, logger)
		if err != nil {
			log.Fatalf("reading cache error: %v", err)
		}
		opts.Reading = reading
	}

	if cfg.HasSpotify() {
		sp, err := spotify.New(context.Background(), spotify.Credentials{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
		})
		if err != nil {
			log.Fatalf("spotify error: %v", err)
		}
		playing, err := cache.New(store, sp, cache.Options[spotify.Track]{
			Key:             jobs.PlayingKey,
			Freshness:       jobs.PlayingFreshness,
			MinPollInterval: jobs.PlayingPollInterval,
			StoreTTL:        jobs.PlayingStoreTTL,
			Equal:           spotify.Equal,
		}, logger)
		if err != nil {
			log.Fatalf("playing cache error: %v", err)
		}
		opts.Playing = playing
	}

	// Router / server
	s := routes.New(opts)
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: h}
	log.Fatal(srv.ListenAndServe())
}

func newStore(cfg config.Config) (cache.Store, error) {
	if cfg.Store.Driver == "bolt" {
		return cache.NewBoltStore(cfg.Store.BoltPath)
	}
	return cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})), nil
}
