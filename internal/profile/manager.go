package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetProfileKey(key string) (string, error)
	GetAllProfileKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Profile keys. List values and timestamps are stored as JSON / RFC 3339.
const (
	keyProgressPct   = "roadmap.progress_pct"
	keyWeakSkills    = "roadmap.weak_skills"
	keyLastUpdatedAt = "roadmap.last_updated_at"
	keyActivity      = "activity"
)

const (
	DefaultMaxWeakSkills = 20
	DefaultMaxActivity   = 50
)

// ErrEmptySkill is returned by AddGapSkill for a blank label.
var ErrEmptySkill = errors.New("empty skill label")

// Manager provides cached, structured access to the roadmap part of the
// user profile.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	maxWeakSkills int
	maxActivity   int

	mu       sync.RWMutex
	cached   *State
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store:         store,
		clock:         clock,
		ttl:           ttl,
		maxWeakSkills: DefaultMaxWeakSkills,
		maxActivity:   DefaultMaxActivity,
	}
}

// WithLimits overrides the weak-skill and activity caps. Non-positive values
// keep the defaults.
func (m *Manager) WithLimits(maxWeakSkills, maxActivity int) *Manager {
	if maxWeakSkills > 0 {
		m.maxWeakSkills = maxWeakSkills
	}
	if maxActivity > 0 {
		m.maxActivity = maxActivity
	}
	return m
}

// GetState returns the current profile state from cache or storage.
func (m *Manager) GetState() (State, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		s := deepCopyState(m.cached)
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return deepCopyState(m.cached), nil
	}

	s, err := m.loadLocked()
	if err != nil {
		return State{}, err
	}
	m.cached = &s
	m.cachedAt = m.clock.Now()
	return deepCopyState(&s), nil
}

// UpdateRoadmapSummary merges u into the summary, stamps the update time and
// logs a "Roadmap progress N%" activity event.
func (m *Manager) UpdateRoadmapSummary(u SummaryUpdate) (RoadmapSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked()
	if err != nil {
		return RoadmapSummary{}, err
	}

	if u.ProgressPct != nil {
		s.Roadmap.ProgressPct = clampPct(*u.ProgressPct)
	}
	if u.WeakSkills != nil {
		s.Roadmap.WeakSkills = m.capSkills(dedupe(u.WeakSkills))
	}
	at := m.clock.Now().UTC()
	if u.LastUpdatedAt != nil {
		at = u.LastUpdatedAt.UTC()
	}
	s.Roadmap.LastUpdatedAt = &at
	m.prependActivity(&s, fmt.Sprintf("Roadmap progress %d%%", s.Roadmap.ProgressPct), at)

	if err := m.saveLocked(s, u.ProgressPct != nil, u.WeakSkills != nil); err != nil {
		return RoadmapSummary{}, err
	}
	return deepCopyState(&s).Roadmap, nil
}

// AddGapSkill appends skill to the weak-skill set. Duplicates are ignored
// and the set never grows past its cap; an activity event is logged either way.
func (m *Manager) AddGapSkill(skill string) (RoadmapSummary, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return RoadmapSummary{}, ErrEmptySkill
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked()
	if err != nil {
		return RoadmapSummary{}, err
	}

	s.Roadmap.WeakSkills = m.capSkills(dedupe(append(s.Roadmap.WeakSkills, skill)))
	at := m.clock.Now().UTC()
	s.Roadmap.LastUpdatedAt = &at
	m.prependActivity(&s, "Added skill gap: "+skill, at)

	if err := m.saveLocked(s, false, true); err != nil {
		return RoadmapSummary{}, err
	}
	return deepCopyState(&s).Roadmap, nil
}

// GetSummary returns a one-paragraph plain-text view of the roadmap summary.
func (m *Manager) GetSummary() (string, error) {
	s, err := m.GetState()
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return summarize(s), nil
}

func summarize(s State) string {
	if s.Roadmap.LastUpdatedAt == nil && len(s.Roadmap.WeakSkills) == 0 {
		return "Roadmap: not started yet."
	}
	parts := []string{fmt.Sprintf("Roadmap progress: %d%%.", s.Roadmap.ProgressPct)}
	if len(s.Roadmap.WeakSkills) > 0 {
		parts = append(parts, fmt.Sprintf("Skill gaps: %s.", strings.Join(s.Roadmap.WeakSkills, ", ")))
	}
	if s.Roadmap.LastUpdatedAt != nil {
		parts = append(parts, "Last updated "+s.Roadmap.LastUpdatedAt.Format(time.RFC3339)+".")
	}
	return strings.Join(parts, " ")
}

func (m *Manager) prependActivity(s *State, label string, at time.Time) {
	ev := ActivityEvent{
		ID:    uuid.NewString(),
		Type:  ActivityRoadmapUpdated,
		Label: label,
		At:    at,
	}
	s.Activity = append([]ActivityEvent{ev}, s.Activity...)
	if len(s.Activity) > m.maxActivity {
		s.Activity = s.Activity[:m.maxActivity]
	}
}

func (m *Manager) capSkills(skills []string) []string {
	if len(skills) > m.maxWeakSkills {
		return skills[:m.maxWeakSkills]
	}
	return skills
}

// loadLocked reads the state straight from storage. Caller must hold mu.
func (m *Manager) loadLocked() (State, error) {
	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return State{}, fmt.Errorf("loading profile keys: %w", err)
	}
	return buildState(keys), nil
}

// saveLocked persists s and invalidates the cache. Caller must hold mu.
func (m *Manager) saveLocked(s State, pct, weak bool) error {
	values := map[string]any{keyActivity: s.Activity}
	if pct {
		values[keyProgressPct] = strconv.Itoa(s.Roadmap.ProgressPct)
	}
	if weak {
		values[keyWeakSkills] = s.Roadmap.WeakSkills
	}
	if s.Roadmap.LastUpdatedAt != nil {
		values[keyLastUpdatedAt] = s.Roadmap.LastUpdatedAt.Format(time.RFC3339Nano)
	}

	m.cached = nil
	for key, v := range values {
		str, ok := v.(string)
		if !ok {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshalling value for key %q: %w", key, err)
			}
			str = string(b)
		}
		if err := m.store.SetProfileKey(key, str); err != nil {
			return fmt.Errorf("setting profile key %q: %w", key, err)
		}
	}
	return nil
}

// buildState assembles a State from flat key-value pairs. Malformed values
// are skipped with a warning.
func buildState(keys map[string]string) State {
	var s State

	if v, ok := keys[keyProgressPct]; ok {
		pct, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("malformed profile key, skipping", "key", keyProgressPct, "error", err)
		} else {
			s.Roadmap.ProgressPct = clampPct(pct)
		}
	}
	if v, ok := keys[keyLastUpdatedAt]; ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			slog.Warn("malformed profile key, skipping", "key", keyLastUpdatedAt, "error", err)
		} else {
			s.Roadmap.LastUpdatedAt = &t
		}
	}
	unmarshalProfileKey(keys, keyWeakSkills, &s.Roadmap.WeakSkills)
	unmarshalProfileKey(keys, keyActivity, &s.Activity)

	return s
}

// unmarshalProfileKey unmarshals a JSON value from keys into target, logging
// a warning if the value is present but malformed.
func unmarshalProfileKey(keys map[string]string, key string, target any) {
	v, ok := keys[key]
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(v), target); err != nil {
		slog.Warn("malformed profile key, skipping", "key", key, "error", err)
	}
}

func deepCopyState(s *State) State {
	if s == nil {
		return State{}
	}
	cp := *s
	if s.Roadmap.WeakSkills != nil {
		cp.Roadmap.WeakSkills = make([]string, len(s.Roadmap.WeakSkills))
		copy(cp.Roadmap.WeakSkills, s.Roadmap.WeakSkills)
	}
	if s.Roadmap.LastUpdatedAt != nil {
		t := *s.Roadmap.LastUpdatedAt
		cp.Roadmap.LastUpdatedAt = &t
	}
	if s.Activity != nil {
		cp.Activity = make([]ActivityEvent, len(s.Activity))
		copy(cp.Activity, s.Activity)
	}
	return cp
}

// dedupe keeps the first occurrence of each label, in order.
func dedupe(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clampPct(p int) int {
	return min(100, max(0, p))
}
