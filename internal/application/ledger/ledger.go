// Package ledger keeps the bounded, in-memory record of evaluated tips and
// derives every contributor aggregate from it on demand.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

const (
	// DefaultCapacity is the maximum number of live records.
	DefaultCapacity = 100
	// ProfileRecentTips is how many tips a user profile carries.
	ProfileRecentTips = 5
	// DefaultLeaderboardLimit is the leaderboard size when the caller gives none.
	DefaultLeaderboardLimit = 10
)

// Ledger is a FIFO ring buffer of TipRecords. Safe for concurrent use.
type Ledger struct {
	mu    sync.RWMutex
	buf   []domain.TipRecord
	head  int // índice del registro más antiguo
	count int
}

// New creates a ledger holding at most capacity records.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{buf: make([]domain.TipRecord, capacity)}
}

// Append adds rec at the end; when full, the oldest record is dropped.
func (l *Ledger) Append(rec domain.TipRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count < len(l.buf) {
		l.buf[(l.head+l.count)%len(l.buf)] = rec
		l.count++
		return
	}
	l.buf[l.head] = rec
	l.head = (l.head + 1) % len(l.buf)
}

// Len returns the number of live records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Cap returns the configured capacity.
func (l *Ledger) Cap() int {
	return len(l.buf)
}

// Query returns every record in insertion order, or only userID's when non-empty.
func (l *Ledger) Query(userID string) []domain.TipRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.TipRecord, 0, l.count)
	l.each(func(r domain.TipRecord) {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	})
	return out
}

// each walks records oldest first. Callers hold the lock.
func (l *Ledger) each(fn func(domain.TipRecord)) {
	for i := 0; i < l.count; i++ {
		fn(l.buf[(l.head+i)%len(l.buf)])
	}
}

// Stats summarizes the whole ledger. An empty ledger yields zeros.
func (l *Ledger) Stats() domain.LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var st domain.LedgerStats
	confSum := 0
	l.each(func(r domain.TipRecord) {
		st.TotalTips++
		if r.Verified {
			st.VerifiedTips++
		}
		confSum += r.Confidence
		st.TotalCommission += r.CommissionPct
	})
	if st.TotalTips > 0 {
		st.VerificationRate = float64(st.VerifiedTips) / float64(st.TotalTips)
		st.AvgConfidence = float64(confSum) / float64(st.TotalTips)
	}
	return st
}

// Leaderboard groups records by user and sorts by total commission, highest
// first. Ties keep the order in which each user first appears. limit <= 0
// returns every group.
func (l *Ledger) Leaderboard(limit int) []domain.UserAggregate {
	l.mu.RLock()
	groups := l.aggregateLocked("")
	l.mu.RUnlock()

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TotalCommission > groups[j].TotalCommission
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// UserProfile returns userID's rollup plus their most recent tips, newest
// first. Returns domain.ErrNotFound when the user has no records or userID is
// empty.
func (l *Ledger) UserProfile(userID string) (domain.UserProfile, error) {
	if userID == "" {
		return domain.UserProfile{}, fmt.Errorf("ledger.UserProfile: empty user id: %w", domain.ErrNotFound)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	groups := l.aggregateLocked(userID)
	if len(groups) == 0 {
		return domain.UserProfile{}, fmt.Errorf("ledger.UserProfile: user %q: %w", userID, domain.ErrNotFound)
	}

	var recent []domain.TipRecord
	for i := l.count - 1; i >= 0 && len(recent) < ProfileRecentTips; i-- {
		r := l.buf[(l.head+i)%len(l.buf)]
		if r.UserID == userID {
			recent = append(recent, r)
		}
	}
	return domain.UserProfile{UserAggregate: groups[0], RecentTips: recent}, nil
}

type accum struct {
	agg     domain.UserAggregate
	confSum int
	qualSum int
}

// aggregateLocked builds per-user rollups in first-appearance order, limited
// to userID when non-empty.
func (l *Ledger) aggregateLocked(userID string) []domain.UserAggregate {
	index := make(map[string]int)
	var acc []*accum
	l.each(func(r domain.TipRecord) {
		if userID != "" && r.UserID != userID {
			return
		}
		i, ok := index[r.UserID]
		if !ok {
			i = len(acc)
			index[r.UserID] = i
			acc = append(acc, &accum{agg: domain.UserAggregate{UserID: r.UserID}})
		}
		a := acc[i]
		a.agg.TotalTips++
		if r.Verified {
			a.agg.VerifiedTips++
		}
		a.agg.TotalCommission += r.CommissionPct
		a.confSum += r.Confidence
		a.qualSum += r.QualityScore
	})

	out := make([]domain.UserAggregate, 0, len(acc))
	for _, a := range acc {
		n := float64(a.agg.TotalTips)
		a.agg.AvgConfidence = float64(a.confSum) / n
		a.agg.AvgQuality = float64(a.qualSum) / n
		a.agg.SuccessRate = float64(a.agg.VerifiedTips) / n
		out = append(out, a.agg)
	}
	return out
}
