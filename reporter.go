package streamprobe

import (
	"context"
	"log/slog"
	"time"
)

type statsRate struct {
	bytesPerSecond    float64
	messagesPerSecond float64
}

// reporter periodically logs a one-line throughput summary of the aggregate
// counters. Ticks without any activity are skipped.
type reporter struct {
	stats    *Stats
	interval time.Duration
	logger   *slog.Logger

	last   StatsSnapshot
	lastAt time.Time
}

func newReporter(stats *Stats, interval time.Duration, logger *slog.Logger) *reporter {
	return &reporter{
		stats:    stats,
		interval: interval,
		logger:   logger.With(slog.String("component", "reporter")),
	}
}

func (r *reporter) run(ctx context.Context) {
	r.lastAt = time.Now()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report(time.Now())
		}
	}
}

// tick advances the rate window. It returns false when there was no activity
// at all and the tick should not be logged.
func (r *reporter) tick(now time.Time) (StatsSnapshot, statsRate, bool) {
	snap := r.stats.Snapshot()
	if snap.Messages == 0 && snap.SessionsActive == 0 {
		return snap, statsRate{}, false
	}

	var rate statsRate
	if elapsed := now.Sub(r.lastAt).Seconds(); elapsed > 0 {
		rate.bytesPerSecond = float64(snap.BytesTotal-r.last.BytesTotal) / elapsed
		rate.messagesPerSecond = float64(snap.Messages-r.last.Messages) / elapsed
	}

	r.last = snap
	r.lastAt = now

	return snap, rate, true
}

func (r *reporter) report(now time.Time) {
	snap, rate, ok := r.tick(now)
	if !ok {
		return
	}

	r.logger.Info("server stats",
		slog.Int64("active_sessions", snap.SessionsActive),
		slog.Uint64("audio_frames", snap.AudioFrames),
		slog.Uint64("events", snap.ControlEvents),
		slog.Uint64("messages", snap.Messages),
		slog.Uint64("bytes_total", snap.BytesTotal),
		slog.Float64("bytes_per_second", rate.bytesPerSecond),
		slog.Float64("messages_per_second", rate.messagesPerSecond),
	)
}
