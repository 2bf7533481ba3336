// Package coordination runs on every judge device: advisory match locks derived from
// presence announcements, result submission against the bracket authority, and tournament
// phase reconciliation. No device is the owner of the lock map.
package coordination

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-officiating/presence"
)

const (
	DefaultUpdatingTTL = 30 * time.Second
	announceTimeout    = 5 * time.Second
)

type LockState int

const (
	Unclaimed LockState = iota
	ClaimedByMe
	ClaimedByOther
)

func (s LockState) String() string {
	switch s {
	case ClaimedByMe:
		return "claimed by me"
	case ClaimedByOther:
		return "claimed by other"
	default:
		return "unclaimed"
	}
}

// ArenaPicker asks the operator for an arena slot in 1..slots. A nil slot means no arena;
// an error aborts the claim.
type ArenaPicker func(ctx context.Context, slots int) (*int, error)

// NoArena always picks the explicit "no arena" option.
func NoArena(context.Context, int) (*int, error) { return nil, nil }

// Holder is one judge holding a match, as last announced.
type Holder struct {
	Judge     presence.Identity `json:"judge"`
	ArenaSlot *int              `json:"arena_slot,omitempty"`
	Mine      bool              `json:"mine"`
	seq       uint64
}

// LockView is the observer-local state of one match.
type LockView struct {
	MatchID string `json:"match_id"`
	// Holders is ordered freshest announcement first.
	Holders    []Holder           `json:"holders"`
	Mine       bool               `json:"mine"`
	Conflict   bool               `json:"conflict"`
	Updating   bool               `json:"updating"`
	UpdatingBy *presence.Identity `json:"updating_by,omitempty"`
}

// State returns the state from this observer's point of view.
func (v LockView) State() LockState {
	switch {
	case v.Mine:
		return ClaimedByMe
	case len(v.Holders) > 0:
		return ClaimedByOther
	default:
		return Unclaimed
	}
}

type heldClaim struct {
	slot *int
	seq  uint64
}

type remoteJudge struct {
	judge       presence.Identity
	announcedAt time.Time
	claims      map[string]heldClaim
}

type updatingFlag struct {
	judge presence.Identity
	since time.Time
}

type LockOptions struct {
	// ArenaSlots is the tournament's arena count; zero disables arena selection.
	ArenaSlots  int
	UpdatingTTL time.Duration
	Logger      *slog.Logger
	// OnEvent receives broadcast events other than match updating flags.
	OnEvent func(presence.Event)
}

// LockCoordinator derives the match lock map from the latest announcement of every judge.
// Announcements are full claim sets, so applying one is an idempotent replace.
type LockCoordinator struct {
	channel presence.Channel
	self    presence.Identity
	opts    LockOptions
	logger  *slog.Logger
	now     func() time.Time

	// announceMu orders snapshot and publish together so an older claim set never lands
	// after a newer one.
	announceMu sync.Mutex

	mu         sync.Mutex
	seq        uint64
	mine       map[string]heldClaim
	remote     map[string]*remoteJudge
	updating   map[string]updatingFlag
	myUpdating map[string]bool
	changes    chan struct{}
}

func NewLockCoordinator(ch presence.Channel, self presence.Identity, opts LockOptions) *LockCoordinator {
	if opts.UpdatingTTL <= 0 {
		opts.UpdatingTTL = DefaultUpdatingTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LockCoordinator{
		channel:    ch,
		self:       self,
		opts:       opts,
		logger:     opts.Logger,
		now:        time.Now,
		mine:       make(map[string]heldClaim),
		remote:     make(map[string]*remoteJudge),
		updating:   make(map[string]updatingFlag),
		myUpdating: make(map[string]bool),
		changes:    make(chan struct{}, 1),
	}
}

func (c *LockCoordinator) Self() presence.Identity { return c.self }

func (c *LockCoordinator) ArenaSlots() int { return c.opts.ArenaSlots }

// Start subscribes to the channel. OnSubscribed re-announces the current claim set after
// every (re)connect.
func (c *LockCoordinator) Start(ctx context.Context) error {
	return c.channel.Subscribe(ctx, presence.Handlers{
		OnSync:       c.onSync,
		OnBroadcast:  c.onBroadcast,
		OnSubscribed: c.onSubscribed,
	})
}

func (c *LockCoordinator) Stop() error {
	return c.channel.Unsubscribe()
}

// Changes signals that the lock map changed. Signals coalesce.
func (c *LockCoordinator) Changes() <-chan struct{} {
	return c.changes
}

func (c *LockCoordinator) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *LockCoordinator) onSubscribed() {
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	if err := c.announce(ctx); err != nil {
		c.logger.Warn("re-announce after subscribe failed", slog.String("judge_id", c.self.ID), slog.Any("error", err))
	}
}

func (c *LockCoordinator) onSync(s presence.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Latest announcement per judge; a judge may be connected from several devices.
	latest := make(map[string]presence.Presence, len(s))
	for _, p := range s {
		if p.Judge.ID == "" || p.Judge.ID == c.self.ID {
			continue
		}
		if prev, ok := latest[p.Judge.ID]; ok && prev.AnnouncedAt.After(p.AnnouncedAt) {
			continue
		}
		latest[p.Judge.ID] = p
	}

	next := make(map[string]*remoteJudge, len(latest))
	for id, p := range latest {
		prev := c.remote[id]
		rj := &remoteJudge{judge: p.Judge, announcedAt: p.AnnouncedAt, claims: make(map[string]heldClaim, len(p.Claims))}
		for _, claim := range p.Claims {
			if prev != nil {
				if held, ok := prev.claims[claim.MatchID]; ok {
					held.slot = claim.ArenaSlot
					rj.claims[claim.MatchID] = held
					continue
				}
			}
			c.seq++
			rj.claims[claim.MatchID] = heldClaim{slot: claim.ArenaSlot, seq: c.seq}
		}
		next[id] = rj
	}
	c.remote = next

	// A busy flag cannot outlive the judge that raised it.
	for matchID, flag := range c.updating {
		if _, ok := next[flag.judge.ID]; !ok {
			delete(c.updating, matchID)
		}
	}
	c.notify()
}

func (c *LockCoordinator) onBroadcast(ev presence.Event) {
	if ev.Judge.ID == c.self.ID && ev.Judge.ID != "" {
		return
	}
	switch ev.Type {
	case presence.EventMatchUpdating:
		c.mu.Lock()
		if ev.Updating {
			c.updating[ev.MatchID] = updatingFlag{judge: ev.Judge, since: c.now()}
		} else {
			delete(c.updating, ev.MatchID)
		}
		c.mu.Unlock()
		c.notify()
	default:
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

func (c *LockCoordinator) claimsLocked() []presence.Claim {
	ids := make([]string, 0, len(c.mine))
	for id := range c.mine {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return c.mine[ids[i]].seq < c.mine[ids[j]].seq })
	claims := make([]presence.Claim, 0, len(ids))
	for _, id := range ids {
		claims = append(claims, presence.Claim{MatchID: id, ArenaSlot: c.mine[id].slot})
	}
	return claims
}

// Claims returns this judge's claim set in claim order.
func (c *LockCoordinator) Claims() []presence.Claim {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimsLocked()
}

func (c *LockCoordinator) announce(ctx context.Context) error {
	c.announceMu.Lock()
	defer c.announceMu.Unlock()

	c.mu.Lock()
	claims := c.claimsLocked()
	c.mu.Unlock()
	return c.channel.Announce(ctx, c.self, claims)
}

// updatingByOtherLocked returns the judge currently updating matchID. Expired flags are
// dropped here.
func (c *LockCoordinator) updatingByOtherLocked(matchID string) (presence.Identity, bool) {
	flag, ok := c.updating[matchID]
	if !ok {
		return presence.Identity{}, false
	}
	if c.now().Sub(flag.since) > c.opts.UpdatingTTL {
		delete(c.updating, matchID)
		return presence.Identity{}, false
	}
	return flag.judge, true
}

// holdersLocked returns the other judges holding matchID, freshest first.
func (c *LockCoordinator) holdersLocked(matchID string) []Holder {
	var holders []Holder
	for _, rj := range c.remote {
		if held, ok := rj.claims[matchID]; ok {
			holders = append(holders, Holder{Judge: rj.judge, ArenaSlot: held.slot, seq: held.seq})
		}
	}
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].seq != holders[j].seq {
			return holders[i].seq > holders[j].seq
		}
		return holders[i].Judge.ID < holders[j].Judge.ID
	})
	return holders
}

func (c *LockCoordinator) conflictLocked(matchID string) error {
	if judge, ok := c.updatingByOtherLocked(matchID); ok {
		return &ConflictError{MatchID: matchID, Holder: judge, Updating: true}
	}
	if holders := c.holdersLocked(matchID); len(holders) > 0 {
		_, mine := c.mine[matchID]
		return &ConflictError{MatchID: matchID, Holder: holders[0].Judge, Contested: mine}
	}
	return nil
}

// Claim picks an arena slot when the tournament has arenas, then adds matchID to the claim
// set and announces it. A claim that could not be announced stays local and goes out with
// the next re-announce.
func (c *LockCoordinator) Claim(ctx context.Context, matchID string, pick ArenaPicker) error {
	c.mu.Lock()
	if _, ok := c.mine[matchID]; ok {
		c.mu.Unlock()
		return nil
	}
	if err := c.conflictLocked(matchID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	var slot *int
	if slots := c.opts.ArenaSlots; slots > 0 {
		if pick == nil {
			pick = NoArena
		}
		chosen, err := pick(ctx, slots)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrClaimCancelled, err)
		}
		if chosen != nil && (*chosen < 1 || *chosen > slots) {
			return fmt.Errorf("%w: %d (1..%d)", ErrInvalidArenaSlot, *chosen, slots)
		}
		slot = chosen
	}

	c.mu.Lock()
	// The lock map may have moved while the operator was choosing.
	if err := c.conflictLocked(matchID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.seq++
	c.mine[matchID] = heldClaim{slot: slot, seq: c.seq}
	c.mu.Unlock()
	c.notify()

	if err := c.announce(ctx); err != nil {
		return fmt.Errorf("claim of %s kept locally, announce failed: %w", matchID, err)
	}
	return nil
}

// Release removes matchID from the claim set and announces. Releasing an unheld match is
// a no-op.
func (c *LockCoordinator) Release(ctx context.Context, matchID string) error {
	c.mu.Lock()
	if _, ok := c.mine[matchID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.mine, matchID)
	c.mu.Unlock()
	c.notify()

	if err := c.announce(ctx); err != nil {
		return fmt.Errorf("release of %s kept locally, announce failed: %w", matchID, err)
	}
	return nil
}

func (c *LockCoordinator) State(matchID string) LockState {
	return c.View(matchID).State()
}

func (c *LockCoordinator) viewLocked(matchID string) LockView {
	v := LockView{MatchID: matchID, Holders: c.holdersLocked(matchID)}
	others := len(v.Holders)
	if held, ok := c.mine[matchID]; ok {
		v.Mine = true
		me := Holder{Judge: c.self, ArenaSlot: held.slot, Mine: true, seq: held.seq}
		v.Holders = append(v.Holders, me)
		sort.SliceStable(v.Holders, func(i, j int) bool { return v.Holders[i].seq > v.Holders[j].seq })
	}
	v.Conflict = v.Mine && others > 0 || others > 1
	if judge, ok := c.updatingByOtherLocked(matchID); ok {
		v.Updating = true
		v.UpdatingBy = &judge
	} else if c.myUpdating[matchID] {
		v.Updating = true
		self := c.self
		v.UpdatingBy = &self
	}
	return v
}

func (c *LockCoordinator) View(matchID string) LockView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(matchID)
}

// Locks returns every match that is held or updating, ordered by match id.
func (c *LockCoordinator) Locks() []LockView {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make(map[string]struct{})
	for id := range c.mine {
		ids[id] = struct{}{}
	}
	for _, rj := range c.remote {
		for id := range rj.claims {
			ids[id] = struct{}{}
		}
	}
	for id := range c.updating {
		ids[id] = struct{}{}
	}
	for id := range c.myUpdating {
		ids[id] = struct{}{}
	}

	out := make([]LockView, 0, len(ids))
	for id := range ids {
		v := c.viewLocked(id)
		if len(v.Holders) == 0 && !v.Updating {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// CanSubmit is the client-side guard: the match must be claimed by this judge, held by no
// one else, and not being updated.
func (c *LockCoordinator) CanSubmit(matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.myUpdating[matchID] {
		return &ConflictError{MatchID: matchID, Holder: c.self, Updating: true}
	}
	if err := c.conflictLocked(matchID); err != nil {
		return err
	}
	if _, ok := c.mine[matchID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotClaimed, matchID)
	}
	return nil
}

// SetUpdating records this judge's own busy flag and broadcasts it to the others.
func (c *LockCoordinator) SetUpdating(ctx context.Context, matchID string, updating bool) error {
	c.mu.Lock()
	if updating {
		c.myUpdating[matchID] = true
	} else {
		delete(c.myUpdating, matchID)
	}
	c.mu.Unlock()
	c.notify()

	return c.channel.Broadcast(ctx, presence.Event{
		Type:     presence.EventMatchUpdating,
		MatchID:  matchID,
		Updating: updating,
		Judge:    c.self,
		At:       c.now().UTC(),
	})
}
