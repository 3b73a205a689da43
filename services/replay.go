package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultReplayWindow = 5 * time.Minute

// NonceStore remembers signed-request fingerprints for the freshness window.
// Remember reports false when the fingerprint was already seen.
type NonceStore interface {
	Remember(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
}

// ReplayGuard bounds how old a signed request may be. The window check alone
// leaves a documented residual risk: a captured request can be replayed
// verbatim until the window closes. Wiring a NonceStore upgrades that to
// single use.
type ReplayGuard struct {
	Window time.Duration
	Nonces NonceStore // nil disables single-use tracking
	Now    func() time.Time
}

func NewReplayGuard(window time.Duration, nonces NonceStore) *ReplayGuard {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &ReplayGuard{Window: window, Nonces: nonces, Now: time.Now}
}

// Accept enforces freshness for one verified request. The timestamp is the
// already signature-covered header value, RFC3339 UTC.
func (g *ReplayGuard) Accept(ctx context.Context, apiKey, timestamp, signature string) error {
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp %q", ErrValidation, timestamp)
	}

	age := g.Now().Sub(ts)
	if age < 0 {
		age = -age
	}
	if age > g.Window {
		return fmt.Errorf("%w: timestamp outside %s window", ErrStaleRequest, g.Window)
	}

	if g.Nonces == nil {
		return nil
	}
	fingerprint := strings.Join([]string{apiKey, timestamp, signature}, "|")
	fresh, err := g.Nonces.Remember(ctx, fingerprint, g.Window)
	if err != nil {
		return fmt.Errorf("nonce store: %w", err)
	}
	if !fresh {
		return ErrReplayedRequest
	}
	return nil
}

type memoryNonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryNonceStore tracks nonces in process. Good for a single instance;
// use the redis store when more than one replica verifies hooks.
func NewMemoryNonceStore() NonceStore {
	return &memoryNonceStore{seen: map[string]time.Time{}, now: time.Now}
}

func (s *memoryNonceStore) Remember(_ context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, deadline := range s.seen {
		if now.After(deadline) {
			delete(s.seen, k)
		}
	}
	if _, dup := s.seen[fingerprint]; dup {
		return false, nil
	}
	s.seen[fingerprint] = now.Add(ttl)
	return true, nil
}

type redisNonceStore struct {
	rdb *redis.Client
}

// NewRedisNonceStore shares nonce state across replicas; the key TTL equals
// the freshness window so the store stays bounded.
func NewRedisNonceStore(rdb *redis.Client) NonceStore {
	return &redisNonceStore{rdb: rdb}
}

func (s *redisNonceStore) Remember(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, "replay:"+fingerprint, 1, ttl).Result()
}
