package auth

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// permanentExpiry marks a ban with no expiry.
const permanentExpiry = int64(math.MaxInt64)

// BanTracker counts failed login attempts per source address and promotes
// repeated failures to a timed address ban. Bans match the exact address
// first, then the /24, /16 and /8 wildcard forms. Expired entries are
// removed lazily on lookup; Sweep exists only for memory hygiene.
//
// The mutex guards only the two maps and is never held across I/O.
type BanTracker struct {
	mu       sync.Mutex
	failures map[string]int
	bans     map[string]int64 // address -> expiry unix millis

	threshold   int
	banDuration time.Duration

	// Optional write-through hooks for durable bans. Called outside the lock.
	OnBan   func(address string, expiry time.Time, permanent bool)
	OnUnban func(address string)

	log *zap.Logger
}

func NewBanTracker(threshold int, banDuration time.Duration, log *zap.Logger) *BanTracker {
	return &BanTracker{
		failures:    make(map[string]int),
		bans:        make(map[string]int64),
		threshold:   threshold,
		banDuration: banDuration,
		log:         log,
	}
}

// RecordFailure increments the address's consecutive-failure counter. When
// the counter reaches the threshold the address is banned and the counter
// reset, so a freshly expired ban starts with a clean slate.
func (t *BanTracker) RecordFailure(address string) {
	t.mu.Lock()
	t.failures[address]++
	count := t.failures[address]
	banned := count >= t.threshold
	if banned {
		delete(t.failures, address)
	}
	t.mu.Unlock()

	if banned {
		t.Ban(address, t.banDuration)
		t.log.Warn("address banned after repeated login failures",
			zap.String("address", address),
			zap.Int("attempts", count),
		)
	}
}

// ClearFailures resets the address's failure counter after a successful login.
func (t *BanTracker) ClearFailures(address string) {
	t.mu.Lock()
	delete(t.failures, address)
	t.mu.Unlock()
}

// Ban adds the address to the ban table. A zero or negative duration means
// permanent. An existing ban is never overwritten.
func (t *BanTracker) Ban(address string, duration time.Duration) {
	expiry := permanentExpiry
	if duration > 0 {
		expiry = time.Now().Add(duration).UnixMilli()
	}

	t.mu.Lock()
	_, exists := t.bans[address]
	if !exists {
		t.bans[address] = expiry
	}
	t.mu.Unlock()

	if !exists && t.OnBan != nil {
		if expiry == permanentExpiry {
			t.OnBan(address, time.Time{}, true)
		} else {
			t.OnBan(address, time.UnixMilli(expiry), false)
		}
	}
}

// Unban removes the exact address from the ban table. Returns false when no
// ban existed for it.
func (t *BanTracker) Unban(address string) bool {
	t.mu.Lock()
	_, ok := t.bans[address]
	delete(t.bans, address)
	t.mu.Unlock()

	if ok && t.OnUnban != nil {
		t.OnUnban(address)
	}
	return ok
}

// IsBanned reports whether the address is covered by an active ban. The
// first matching form governs: exact, /24, /16, /8. A match whose expiry
// has passed is removed and treated as not banned.
func (t *BanTracker) IsBanned(address string) bool {
	now := time.Now().UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range wildcardForms(address) {
		expiry, ok := t.bans[key]
		if !ok {
			continue
		}
		if expiry != permanentExpiry && expiry < now {
			delete(t.bans, key)
			t.log.Info("expired address ban removed", zap.String("address", key))
			return false
		}
		return true
	}
	return false
}

// BanCount returns the number of active entries (including not-yet-expired).
func (t *BanTracker) BanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bans)
}

// Sweep periodically drops expired entries. Lazy expiry already keeps
// IsBanned correct; this only bounds memory for addresses never looked
// up again. Runs until ctx is cancelled.
func (t *BanTracker) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixMilli()
			t.mu.Lock()
			for addr, expiry := range t.bans {
				if expiry != permanentExpiry && expiry < now {
					delete(t.bans, addr)
				}
			}
			t.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// wildcardForms returns the lookup keys for an IPv4 address in precedence
// order. Non-dotted-quad input matches only exactly.
func wildcardForms(address string) []string {
	parts := strings.Split(address, ".")
	if len(parts) != 4 {
		return []string{address}
	}
	return []string{
		address,
		parts[0] + "." + parts[1] + "." + parts[2] + ".0",
		parts[0] + "." + parts[1] + ".0.0",
		parts[0] + ".0.0.0",
	}
}
