package coordination

import (
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-officiating/models"
)

// Draft is operator input for a match that has not been submitted yet.
type Draft struct {
	ScoreSummary string
	WinnerID     string
}

// MatchCache is the disposable local copy of the authority's match list.
type MatchCache struct {
	mu        sync.RWMutex
	matches   []models.Match
	byID      map[string]int
	drafts    map[string]Draft
	fetchedAt time.Time
}

func NewMatchCache() *MatchCache {
	return &MatchCache{byID: make(map[string]int), drafts: make(map[string]Draft)}
}

// Replace swaps in a freshly fetched list. Local patches are never applied.
func (c *MatchCache) Replace(matches []models.Match) {
	sorted := make([]models.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DisplayOrder < sorted[j].DisplayOrder })

	byID := make(map[string]int, len(sorted))
	for i, m := range sorted {
		byID[m.ID] = i
	}

	c.mu.Lock()
	c.matches = sorted
	c.byID = byID
	c.fetchedAt = time.Now()
	c.mu.Unlock()
}

// Invalidate discards the list so nothing stale is shown.
func (c *MatchCache) Invalidate() {
	c.mu.Lock()
	c.matches = nil
	c.byID = make(map[string]int)
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *MatchCache) Matches() []models.Match {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Match, len(c.matches))
	copy(out, c.matches)
	return out
}

func (c *MatchCache) Match(id string) (models.Match, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Match{}, false
	}
	return c.matches[i], true
}

func (c *MatchCache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *MatchCache) SetDraft(matchID string, d Draft) {
	c.mu.Lock()
	c.drafts[matchID] = d
	c.mu.Unlock()
}

func (c *MatchCache) Draft(matchID string) (Draft, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.drafts[matchID]
	return d, ok
}

func (c *MatchCache) ClearDraft(matchID string) {
	c.mu.Lock()
	delete(c.drafts, matchID)
	c.mu.Unlock()
}
