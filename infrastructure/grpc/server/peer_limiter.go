package server

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/peer"
)

const (
	unknownPeer = "unknown"
	minIdle     = time.Minute
)

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// PeerLimiter keeps one token bucket per remote host. Ports are ignored so a
// client cannot refill its bucket by reconnecting. Calls without a peer share
// one bucket.
type PeerLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func NewPeerLimiter(limit rate.Limit, burst int) *PeerLimiter {
	// A bucket left alone for that long is full again, dropping it changes nothing
	idle := minIdle
	if limit > 0 {
		idle = max(idle, time.Duration(float64(burst)/float64(limit)*float64(time.Second)))
	}
	return &PeerLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *PeerLimiter) Allow(ctx context.Context) bool {
	key := peerKey(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

// Peers is the number of hosts currently tracked.
func (l *PeerLimiter) Peers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return unknownPeer
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
