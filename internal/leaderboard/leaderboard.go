// Package leaderboard keeps the ranked player entries of a single room.
//
// A Leaderboard is not safe for concurrent use; the owning room serializes access.
package leaderboard

import (
	"sort"
	"time"

	"quiz-room-service/internal/domain"
)

type entry struct {
	domain.PlayerEntry
	// seq orders entries whose lastUpdate timestamps are equal.
	seq uint64
}

// Leaderboard indexes entries by player id and keeps them ordered by
// points desc, lastUpdate asc.
type Leaderboard struct {
	now    func() time.Time
	seq    uint64
	byID   map[string]*entry
	ranked []*entry
}

func New(now func() time.Time) *Leaderboard {
	if now == nil {
		now = time.Now
	}
	return &Leaderboard{
		now:  now,
		byID: make(map[string]*entry),
	}
}

// Upsert applies one answered question to a player, creating the entry on first use,
// and returns the player's new total. Negative deltas are ignored so points never drop.
func (l *Leaderboard) Upsert(playerID string, pointsDelta int, correct bool) int {
	e, ok := l.byID[playerID]
	if ok {
		l.remove(e)
	} else {
		e = &entry{PlayerEntry: domain.PlayerEntry{PlayerID: playerID}}
		l.byID[playerID] = e
	}

	if pointsDelta > 0 {
		e.Points += pointsDelta
	}
	e.AnsweredCount++
	if correct {
		e.CorrectCount++
	}
	l.seq++
	e.seq = l.seq
	e.LastUpdate = l.now()

	l.insert(e)
	return e.Points
}

// Finalize records a player's final submission. The first call wins; later calls for a
// completed player are ignored. Unknown players are reported, never created.
func (l *Leaderboard) Finalize(playerID string, finalCorrectCount int, finalTimeTakenMs int64) error {
	e, ok := l.byID[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if e.Completed {
		return nil
	}
	e.Completed = true
	e.FinalCorrectCount = finalCorrectCount
	e.FinalTimeTakenMs = finalTimeTakenMs
	return nil
}

// TopK returns copies of the k best entries; k <= 0 returns every entry.
func (l *Leaderboard) TopK(k int) []domain.PlayerEntry {
	n := len(l.ranked)
	if k > 0 && k < n {
		n = k
	}
	out := make([]domain.PlayerEntry, n)
	for i := 0; i < n; i++ {
		out[i] = l.ranked[i].PlayerEntry
		out[i].Rank = i + 1
	}
	return out
}

// Entries returns the full ranking.
func (l *Leaderboard) Entries() []domain.PlayerEntry {
	return l.TopK(0)
}

// Get returns a copy of one player's entry without its rank.
func (l *Leaderboard) Get(playerID string) (domain.PlayerEntry, bool) {
	e, ok := l.byID[playerID]
	if !ok {
		return domain.PlayerEntry{}, false
	}
	return e.PlayerEntry, true
}

func (l *Leaderboard) Len() int {
	return len(l.ranked)
}

func (l *Leaderboard) insert(e *entry) {
	i := l.search(e)
	l.ranked = append(l.ranked, nil)
	copy(l.ranked[i+1:], l.ranked[i:])
	l.ranked[i] = e
}

func (l *Leaderboard) remove(e *entry) {
	i := l.search(e)
	// Keys are unique through seq, so the search lands on e itself.
	if i < len(l.ranked) && l.ranked[i] == e {
		l.ranked = append(l.ranked[:i], l.ranked[i+1:]...)
	}
}

// search returns the first position whose entry does not rank ahead of e.
func (l *Leaderboard) search(e *entry) int {
	return sort.Search(len(l.ranked), func(i int) bool {
		return !ranksBefore(l.ranked[i], e)
	})
}

func ranksBefore(a, b *entry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.LastUpdate.Equal(b.LastUpdate) {
		return a.LastUpdate.Before(b.LastUpdate)
	}
	return a.seq < b.seq
}
