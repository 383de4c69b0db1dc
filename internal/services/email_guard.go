package services

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pratik-mahalle/costmonitor/internal/domain/notification"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// GuardConfig bounds outbound email volume
type GuardConfig struct {
	MaxPerHour  int
	DedupWindow time.Duration
	RateWindow  time.Duration
}

// DefaultGuardConfig returns 10 emails per rolling hour with a 30 minute dedup window
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxPerHour:  10,
		DedupWindow: 30 * time.Minute,
		RateWindow:  time.Hour,
	}
}

// EmailGuard rate-limits and deduplicates sends within one process.
// It is a best-effort safeguard, not a durable shared limiter: state is lost on restart
// and never shared between processes.
type EmailGuard struct {
	cfg GuardConfig

	mu      sync.Mutex
	records []notification.SentRecord
}

// NewEmailGuard creates a new email guard
func NewEmailGuard(cfg GuardConfig) *EmailGuard {
	return &EmailGuard{cfg: cfg}
}

// Check returns ErrRateLimited when the hourly cap is reached and ErrDuplicate when
// fingerprint was sent within the dedup window. It records nothing; use Reserve to
// claim a slot.
func (g *EmailGuard) Check(fingerprint string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.check(fingerprint, now)
}

// Reserve checks and records fingerprint under one lock, so concurrent senders of the
// same content cannot both pass. Call Release if the message is not sent after all.
func (g *EmailGuard) Reserve(fingerprint string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(fingerprint, now); err != nil {
		return err
	}
	g.records = append(g.records, notification.SentRecord{
		Timestamp:   now,
		Fingerprint: fingerprint,
	})
	return nil
}

// Release drops a reservation made by Reserve at the same instant
func (g *EmailGuard) Release(fingerprint string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := len(g.records) - 1; i >= 0; i-- {
		r := g.records[i]
		if r.Fingerprint == fingerprint && r.Timestamp.Equal(at) {
			g.records = append(g.records[:i], g.records[i+1:]...)
			return
		}
	}
}

// check applies the cap and dedup rules. Caller holds mu.
func (g *EmailGuard) check(fingerprint string, now time.Time) error {
	g.prune(now)

	if len(g.records) >= g.cfg.MaxPerHour {
		return apperrors.ErrRateLimited.WithDetails(map[string]interface{}{
			"sent_in_window": len(g.records),
			"max_per_window": g.cfg.MaxPerHour,
		})
	}

	dedupCutoff := now.Add(-g.cfg.DedupWindow)
	for _, r := range g.records {
		if r.Timestamp.After(dedupCutoff) && r.Fingerprint == fingerprint {
			return apperrors.ErrDuplicate.WithDetails(map[string]interface{}{
				"fingerprint": fingerprint,
				"last_sent":   r.Timestamp,
			})
		}
	}

	return nil
}

// MaySend reports whether a send with fingerprint is allowed at now
func (g *EmailGuard) MaySend(fingerprint string, now time.Time) bool {
	return g.Check(fingerprint, now) == nil
}

// Record appends a successful send. Call it only after the transport accepted the message.
func (g *EmailGuard) Record(fingerprint string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.records = append(g.records, notification.SentRecord{
		Timestamp:   now,
		Fingerprint: fingerprint,
	})
}

// Records returns a copy of the records still inside the rate window at now
func (g *EmailGuard) Records(now time.Time) []notification.SentRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(now)
	return append([]notification.SentRecord(nil), g.records...)
}

// prune drops records at or before now - RateWindow. Caller holds mu.
func (g *EmailGuard) prune(now time.Time) {
	cutoff := now.Add(-g.cfg.RateWindow)
	kept := g.records[:0]
	for _, r := range g.records {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	g.records = kept
}

// Fingerprint hashes an email's content. Recipients are sorted first, so their order
// never changes the result.
func Fingerprint(subject, body string, recipients []string) string {
	sorted := append([]string(nil), recipients...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte(body))
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateAddresses trims candidates and keeps the well-formed ones in input order
func ValidateAddresses(candidates []string) []string {
	valid := make([]string, 0, len(candidates))
	for _, c := range candidates {
		addr := strings.TrimSpace(c)
		if addr != "" && emailPattern.MatchString(addr) {
			valid = append(valid, addr)
		}
	}
	return valid
}
