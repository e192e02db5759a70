package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/domain/model"
	sessionrules "github.com/grandstand/cheer/internal/domain/session"
)

// AchievementDef declares a season-total threshold that unlocks a badge.
type AchievementDef struct {
	ID        string
	Name      string
	Threshold int64
}

// seasonKey scopes a supporter's cumulative taps to one team.
type seasonKey struct {
	userID uuid.UUID
	teamID uuid.UUID
}

// InMemory implements Client against process-local state. It backs tests and
// single-node deployments; counters are forward-only and shared across all
// callers, exactly like the real collaborator services.
type InMemory struct {
	mu sync.RWMutex

	sessions    map[uuid.UUID]*model.Session
	byEvent     map[uuid.UUID]uuid.UUID
	rosters     map[uuid.UUID][]model.RosterMember
	sessionTaps map[uuid.UUID]int64
	seasonTaps  map[seasonKey]int64

	achievements []AchievementDef
	reported     map[seasonKey]map[string]bool

	seenShoutouts map[uuid.UUID]bool
	shoutouts     []model.Shoutout

	rateLimitEvery time.Duration
	lastBatch      map[uuid.UUID]time.Time

	now func() time.Time
}

// InMemoryOption applies a configuration option to the InMemory client.
type InMemoryOption func(*InMemory)

// WithAchievements sets the unlock thresholds.
func WithAchievements(defs []AchievementDef) InMemoryOption {
	return func(c *InMemory) {
		c.achievements = append([]AchievementDef(nil), defs...)
	}
}

// WithRateLimitInterval enforces a minimum interval between tap batches per
// supporter. Zero disables rate limiting.
func WithRateLimitInterval(d time.Duration) InMemoryOption {
	return func(c *InMemory) {
		if d > 0 {
			c.rateLimitEvery = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) InMemoryOption {
	return func(c *InMemory) {
		if now != nil {
			c.now = now
		}
	}
}

// NewInMemory creates an in-memory backend with configuration options.
func NewInMemory(opts ...InMemoryOption) *InMemory {
	c := &InMemory{
		sessions:      make(map[uuid.UUID]*model.Session),
		byEvent:       make(map[uuid.UUID]uuid.UUID),
		rosters:       make(map[uuid.UUID][]model.RosterMember),
		sessionTaps:   make(map[uuid.UUID]int64),
		seasonTaps:    make(map[seasonKey]int64),
		reported:      make(map[seasonKey]map[string]bool),
		seenShoutouts: make(map[uuid.UUID]bool),
		lastBatch:     make(map[uuid.UUID]time.Time),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateSession seeds a scheduled session for an event. Not part of Client:
// session creation belongs to the surrounding CRUD system; tests and the
// demo binary use this to stand one up.
func (c *InMemory) CreateSession(ctx context.Context, teamID, eventID uuid.UUID, scheduledEnd time.Time) model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := model.Session{
		ID:           uuid.New(),
		TeamID:       teamID,
		EventID:      eventID,
		Status:       model.StatusScheduled,
		ScheduledEnd: scheduledEnd,
		CreatedAt:    c.now(),
	}
	c.sessions[s.ID] = &s
	c.byEvent[eventID] = s.ID
	return s
}

// AddRosterMember attaches a member to a session's roster.
func (c *InMemory) AddRosterMember(ctx context.Context, sessionID uuid.UUID, m model.RosterMember) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rosters[sessionID] = append(c.rosters[sessionID], m)
}

// SessionByID implements Client.
func (c *InMemory) SessionByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return *s, nil
}

// SessionByEvent implements Client.
func (c *InMemory) SessionByEvent(ctx context.Context, eventID uuid.UUID) (model.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byEvent[eventID]
	if !ok {
		return model.Session{}, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return *c.sessions[id], nil
}

// Roster implements Client.
func (c *InMemory) Roster(ctx context.Context, sessionID uuid.UUID) ([]model.RosterMember, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return append([]model.RosterMember(nil), c.rosters[sessionID]...), nil
}

// SessionTapCount implements Client.
func (c *InMemory) SessionTapCount(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.sessions[sessionID]; !ok {
		return 0, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return c.sessionTaps[sessionID], nil
}

// SendTapBatch implements Client. Counters only ever move forward.
func (c *InMemory) SendTapBatch(ctx context.Context, sessionID, userID uuid.UUID, count int64) (model.BatchResult, error) {
	if count < 1 {
		return model.BatchResult{}, fmt.Errorf("invalid batch count: %d", count)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return model.BatchResult{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if !s.Live() {
		return model.BatchResult{}, fmt.Errorf("session %s: %w", sessionID, ErrNotLive)
	}

	if c.rateLimitEvery > 0 {
		if last, ok := c.lastBatch[userID]; ok && c.now().Sub(last) < c.rateLimitEvery {
			return model.BatchResult{}, fmt.Errorf("batch from %s: %w", userID, ErrRateLimited)
		}
		c.lastBatch[userID] = c.now()
	}

	c.sessionTaps[sessionID] += count
	key := seasonKey{userID: userID, teamID: s.TeamID}
	c.seasonTaps[key] += count

	return model.BatchResult{
		SessionTapCount: c.sessionTaps[sessionID],
		SeasonTotal:     c.seasonTaps[key],
	}, nil
}

// SendShoutout implements Client. Duplicate ids are acked once and ignored.
func (c *InMemory) SendShoutout(ctx context.Context, s model.Shoutout) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[s.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", s.SessionID, ErrNotFound)
	}
	if !sess.Live() {
		return fmt.Errorf("session %s: %w", s.SessionID, ErrNotLive)
	}
	if c.seenShoutouts[s.ID] {
		return nil
	}
	c.seenShoutouts[s.ID] = true
	c.shoutouts = append(c.shoutouts, s)
	return nil
}

// Shoutouts returns delivered shoutouts for a session, oldest first.
func (c *InMemory) Shoutouts(ctx context.Context, sessionID uuid.UUID) []model.Shoutout {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.Shoutout
	for _, s := range c.shoutouts {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out
}

// SeasonTotal implements Client.
func (c *InMemory) SeasonTotal(ctx context.Context, userID, teamID uuid.UUID) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seasonTaps[seasonKey{userID: userID, teamID: teamID}], nil
}

// CheckAchievements implements Client: returns thresholds newly crossed
// since the previous check, lowest threshold first.
func (c *InMemory) CheckAchievements(ctx context.Context, userID, teamID uuid.UUID) ([]model.Achievement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := seasonKey{userID: userID, teamID: teamID}
	total := c.seasonTaps[key]
	seen := c.reported[key]
	if seen == nil {
		seen = make(map[string]bool)
		c.reported[key] = seen
	}

	var unlocked []model.Achievement
	for _, def := range c.achievements {
		if total >= def.Threshold && !seen[def.ID] {
			seen[def.ID] = true
			unlocked = append(unlocked, model.Achievement{
				ID:         def.ID,
				Name:       def.Name,
				Threshold:  def.Threshold,
				UnlockedAt: c.now(),
			})
		}
	}
	sort.Slice(unlocked, func(i, j int) bool { return unlocked[i].Threshold < unlocked[j].Threshold })
	return unlocked, nil
}

// StartSession implements Client. The caller's role comes from the roster.
func (c *InMemory) StartSession(ctx context.Context, sessionID, userID uuid.UUID) (model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if !sessionrules.CanStart(c.roleOf(sessionID, userID)) {
		return model.Session{}, fmt.Errorf("start by %s: %w", userID, ErrUnauthorized)
	}
	if !sessionrules.CanTransition(s.Status, model.StatusLive) {
		return model.Session{}, fmt.Errorf("session %s is %s: %w", sessionID, s.Status, ErrNotLive)
	}

	s.Status = model.StatusLive
	s.StartedBy = userID
	s.StartedAt = c.now()
	return *s, nil
}

// ExtendSession implements Client. Repeated extensions keep pushing the end.
func (c *InMemory) ExtendSession(ctx context.Context, sessionID, userID uuid.UUID, until time.Time) (model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if !sessionrules.CanEnd(*s, userID, c.roleOf(sessionID, userID)) {
		return model.Session{}, fmt.Errorf("extend by %s: %w", userID, ErrUnauthorized)
	}

	s.Status = model.StatusExtended
	s.ExtendedUntil = &until
	return *s, nil
}

// EndSession implements Client. Ending is terminal.
func (c *InMemory) EndSession(ctx context.Context, sessionID, userID uuid.UUID) (model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if !sessionrules.CanEnd(*s, userID, c.roleOf(sessionID, userID)) {
		return model.Session{}, fmt.Errorf("end by %s: %w", userID, ErrUnauthorized)
	}

	ended := c.now()
	s.Status = model.StatusEnded
	s.EndedAt = &ended
	return *s, nil
}

// TopSupporters implements Client: season leaderboard, highest taps first.
func (c *InMemory) TopSupporters(ctx context.Context, teamID uuid.UUID, n int) ([]SupporterRank, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ranks []SupporterRank
	for key, taps := range c.seasonTaps {
		if key.teamID == teamID {
			ranks = append(ranks, SupporterRank{UserID: key.userID, Taps: taps})
		}
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Taps != ranks[j].Taps {
			return ranks[i].Taps > ranks[j].Taps
		}
		return ranks[i].UserID.String() < ranks[j].UserID.String()
	})
	if n > 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	for i := range ranks {
		ranks[i].Rank = i + 1
	}
	return ranks, nil
}

// roleOf returns a user's roster role, defaulting to supporter.
// Callers must hold c.mu.
func (c *InMemory) roleOf(sessionID, userID uuid.UUID) model.Role {
	for _, m := range c.rosters[sessionID] {
		if m.UserID == userID {
			return m.Role
		}
	}
	return model.RoleSupporter
}
