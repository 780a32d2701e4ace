package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// Bus is an in-process domain.SignalBus. Slow subscribers drop messages.
type Bus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	seq     int64
}

var _ domain.SignalBus = (*Bus)(nil)

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish delivers payload to current subscribers of channel.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel closed when ctx is done.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// StreamAppend appends payload with a monotonically increasing ID.
func (b *Bus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.streams[stream] = append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatInt(b.seq, 10),
		Payload: payload,
	})
	return nil
}

// StreamRead returns up to count entries after lastID ("0" or "" for the
// beginning).
func (b *Bus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	var after int64
	if lastID != "" && lastID != "0" && lastID != "$" {
		n, err := strconv.ParseInt(lastID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("memory: stream id %q: %w", lastID, domain.Invalid("after", "not a stream id"))
		}
		after = n
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		id, _ := strconv.ParseInt(m.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

// Locks is an in-process domain.LockManager.
type Locks struct {
	mu   sync.Mutex
	held map[string]time.Time
}

var _ domain.LockManager = (*Locks)(nil)

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]time.Time)}
}

// Acquire takes key until unlock is called or ttl passes.
func (l *Locks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, domain.ErrLockHeld
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(exp) {
			delete(l.held, key)
		}
	}, nil
}

// Limiter is an in-process fixed-window domain.RateLimiter.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
}

type window struct {
	start time.Time
	count int
}

var _ domain.RateLimiter = (*Limiter)(nil)

// NewLimiter returns an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{windows: make(map[string]window)}
}

// Allow counts one request against key.
func (l *Limiter) Allow(_ context.Context, key string, limit int, per time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	w := l.windows[key]
	if now.Sub(w.start) >= per {
		w = window{start: now}
	}
	if w.count >= limit {
		l.windows[key] = w
		return false, nil
	}
	w.count++
	l.windows[key] = w
	return true, nil
}
