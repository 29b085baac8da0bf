package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jcalloway/nowapi/goodreads"
	"github.com/jcalloway/nowapi/internal/cache"
	"github.com/jcalloway/nowapi/internal/config"
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

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("instance", uuid.NewString()).
		Logger()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	mux := asynq.NewServeMux()
	scheduler := asynq.NewScheduler(redisOpt, nil)

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

		mux.HandleFunc(jobs.TaskPollReading, func(ctx context.Context, t *asynq.Task) error {
			// The cache swallows its own errors; a failed tick must never
			// feed the asynq retry machinery.
			reading.Poll(ctx)
			return nil
		})
		if _, err := scheduler.Register(jobs.ReadingCron,
			asynq.NewTask(jobs.TaskPollReading, nil),
			asynq.Queue(jobs.QueuePoll),
		); err != nil {
			log.Fatalf("register reading poll: %v", err)
		}
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

		mux.HandleFunc(jobs.TaskPollPlaying, func(ctx context.Context, t *asynq.Task) error {
			playing.Poll(ctx)
			return nil
		})
		if _, err := scheduler.Register(jobs.PlayingCron,
			asynq.NewTask(jobs.TaskPollPlaying, nil),
			asynq.Queue(jobs.QueuePoll),
		); err != nil {
			log.Fatalf("register playing poll: %v", err)
		}
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			jobs.QueuePoll: 10, // higher priority
			"default":      5,  // default priority
		},
	})

	log.Println("Worker running...")
	var g errgroup.Group
	g.Go(func() error { return srv.Run(mux) })
	g.Go(func() error { return scheduler.Run() })
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

func newStore(cfg config.Config) (cache.Store, error) {
	if cfg.Store.Driver == "bolt" {
		return cache.NewBoltStore(cfg.Store.BoltPath)
	}
	return cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})), nil
}
