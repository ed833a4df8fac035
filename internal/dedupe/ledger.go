// Package dedupe remembers which frames have already been answered.
package dedupe

import (
	"time"

	"github.com/1broseidon/replybot/internal/frame"
)

// Ledger maps fingerprints to the time a reply was last sent for them. It is
// owned by the reply loop and is not safe for concurrent use.
type Ledger struct {
	cooldown  time.Duration
	retention time.Duration
	entries   map[frame.Fingerprint]time.Time
}

// NewLedger returns an empty ledger. Retention shorter than the cooldown is
// raised to the cooldown so pruning never re-admits a suppressed frame.
func NewLedger(cooldown, retention time.Duration) *Ledger {
	l := &Ledger{entries: make(map[frame.Fingerprint]time.Time)}
	l.SetPolicy(cooldown, retention)
	return l
}

// SetPolicy changes the cooldown and retention horizon. Existing entries are
// kept.
func (l *Ledger) SetPolicy(cooldown, retention time.Duration) {
	if retention < cooldown {
		retention = cooldown
	}
	l.cooldown = cooldown
	l.retention = retention
}

// Cooldown returns the active cooldown.
func (l *Ledger) Cooldown() time.Duration {
	return l.cooldown
}

// Suppressed reports whether fp was answered less than one cooldown before
// now. A frame answered exactly one cooldown ago is eligible again.
func (l *Ledger) Suppressed(fp frame.Fingerprint, now time.Time) bool {
	last, ok := l.entries[fp]
	if !ok {
		return false
	}
	return now.Sub(last) < l.cooldown
}

// LastReply returns when fp was last answered.
func (l *Ledger) LastReply(fp frame.Fingerprint) (time.Time, bool) {
	t, ok := l.entries[fp]
	return t, ok
}

// Record marks fp as answered at now.
func (l *Ledger) Record(fp frame.Fingerprint, now time.Time) {
	l.entries[fp] = now
}

// Prune drops entries older than the retention horizon and returns how many
// were removed.
func (l *Ledger) Prune(now time.Time) int {
	removed := 0
	for fp, t := range l.entries {
		if now.Sub(t) > l.retention {
			delete(l.entries, fp)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered fingerprints.
func (l *Ledger) Len() int {
	return len(l.entries)
}
