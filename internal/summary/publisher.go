// Package summary pushes roadmap progress into the user profile.
package summary

import (
	"log/slog"
	"sync"

	"github.com/kalambet/careerpath/internal/profile"
)

// Target is the profile entry point the Publisher pushes to.
// Implemented by profile.Manager.
type Target interface {
	UpdateRoadmapSummary(u profile.SummaryUpdate) (profile.RoadmapSummary, error)
	AddGapSkill(skill string) (profile.RoadmapSummary, error)
}

// Publisher forwards recomputed progress to a Target. The profile holds a
// single percentage for whichever roadmap was recomputed last, so a value is
// skipped only when it equals the last one successfully pushed, whatever its
// key. Push failures are logged and swallowed.
type Publisher struct {
	target Target
	logger *slog.Logger

	mu     sync.Mutex
	pushed bool
	last   int
}

func NewPublisher(target Target) *Publisher {
	return &Publisher{
		target: target,
		logger: slog.Default(),
	}
}

// WithLogger replaces the logger used for push failures.
func (p *Publisher) WithLogger(l *slog.Logger) *Publisher {
	p.logger = l
	return p
}

// OnProgressChanged is called after every progress recomputation for key.
func (p *Publisher) OnProgressChanged(key string, pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushed && p.last == pct {
		return
	}

	if _, err := p.target.UpdateRoadmapSummary(profile.SummaryUpdate{ProgressPct: &pct}); err != nil {
		p.logger.Warn("failed to publish roadmap progress", "key", key, "progress_pct", pct, "error", err)
		// The profile may hold anything now; push the next value unconditionally.
		p.pushed = false
		return
	}
	p.pushed, p.last = true, pct
}

// PublishGapSkill pushes a single skill-gap label. Unlike progress, a gap
// label is a user action, so its error is returned.
func (p *Publisher) PublishGapSkill(label string) error {
	_, err := p.target.AddGapSkill(label)
	return err
}
