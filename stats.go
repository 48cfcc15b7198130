package streamprobe

import "sync/atomic"

// Stats holds the process-wide counters shared by all session handlers and
// the periodic reporter. All fields are atomics so handlers running on
// separate goroutines never contend on a lock.
type Stats struct {
	bytesTotal     atomic.Uint64
	messages       atomic.Uint64
	audioFrames    atomic.Uint64
	controlEvents  atomic.Uint64
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the aggregate counters.
type StatsSnapshot struct {
	BytesTotal     uint64
	Messages       uint64
	AudioFrames    uint64
	ControlEvents  uint64
	SessionsActive int64
	SessionsTotal  uint64
}

// onFrame records one binary audio frame and returns the new global message count.
func (s *Stats) onFrame(n int) uint64 {
	s.bytesTotal.Add(uint64(n))
	s.audioFrames.Add(1)
	return s.messages.Add(1)
}

// onEvent records one decoded control message and returns the new global message count.
func (s *Stats) onEvent(n int) uint64 {
	s.bytesTotal.Add(uint64(n))
	s.controlEvents.Add(1)
	return s.messages.Add(1)
}

func (s *Stats) sessionStarted() {
	s.sessionsActive.Add(1)
	s.sessionsTotal.Add(1)
}

func (s *Stats) sessionEnded() {
	s.sessionsActive.Add(-1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		BytesTotal:     s.bytesTotal.Load(),
		Messages:       s.messages.Load(),
		AudioFrames:    s.audioFrames.Load(),
		ControlEvents:  s.controlEvents.Load(),
		SessionsActive: s.sessionsActive.Load(),
		SessionsTotal:  s.sessionsTotal.Load(),
	}
}
