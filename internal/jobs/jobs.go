// Package jobs holds the task names and poll cadences shared by the api and
// worker binaries, so the two entry points cannot drift apart.
package jobs

import "time"

const (
	TaskPollReading = "poll:reading"
	TaskPollPlaying = "poll:playing"

	QueuePoll = "poll"

	ReadingKey = "source:reading"
	PlayingKey = "source:playing"
)

// Freshness bounds on-demand upstream calls; the poll interval is the
// scheduled cadence the cache's self-throttle converges on. Chosen against
// each source's natural rate of change.
const (
	ReadingFreshness    = time.Hour
	ReadingPollInterval = 30 * time.Minute

	PlayingFreshness    = 30 * time.Second
	PlayingPollInterval = 2 * time.Minute
)

// Cron entries for the external scheduler. Deliberately finer than the poll
// intervals: asynq's cron cannot express the exact period, so the cache gates
// each tick against its own LastPollAt instead.
const (
	ReadingCron = "@every 10m"
	PlayingCron = "@every 1m"
)

// Store TTLs are advisory expiry only, not a correctness mechanism. On expiry
// the next poll recreates the entry.
const (
	ReadingStoreTTL = 7 * 24 * time.Hour
	PlayingStoreTTL = 24 * time.Hour
)
