// Package coach composes roadmap generation, completion tracking,
// recommendations and profile publishing behind one service.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/careerpath/internal/gaps"
	"github.com/kalambet/careerpath/internal/progress"
	"github.com/kalambet/careerpath/internal/recommend"
	"github.com/kalambet/careerpath/internal/roadmap"
)

// ErrUnknownSkill is returned when toggling a skill or step the roadmap
// does not define.
var ErrUnknownSkill = errors.New("unknown skill")

// Observer receives recomputed progress and gap skills.
// Implemented by summary.Publisher.
type Observer interface {
	OnProgressChanged(key string, pct int)
	PublishGapSkill(label string) error
}

// CareerStatus is a generated roadmap together with its completion.
type CareerStatus struct {
	Key      string                `json:"key"`
	Roadmap  roadmap.CareerRoadmap `json:"roadmap"`
	Done     []roadmap.SkillKey    `json:"done"`
	Progress progress.Progress     `json:"progress"`
}

// TrackStatus is a step checklist together with its completion.
type TrackStatus struct {
	Key      string             `json:"key"`
	Track    roadmap.Track      `json:"track"`
	Done     []roadmap.SkillKey `json:"done"`
	Progress progress.Progress  `json:"progress"`
}

// OverviewEntry is the progress of one roadmap selection with at least one
// recorded skill.
type OverviewEntry struct {
	Selection roadmap.Selection `json:"selection"`
	Key       string            `json:"key"`
	Progress  progress.Progress `json:"progress"`
}

// Service is safe for concurrent use.
type Service struct {
	store    *progress.Store
	prefix   string
	observer Observer
	logger   *slog.Logger
}

// NewService creates a Service. An empty prefix uses progress.DefaultKeyPrefix
// and a nil observer disables publishing.
func NewService(store *progress.Store, prefix string, observer Observer) *Service {
	if prefix == "" {
		prefix = progress.DefaultKeyPrefix
	}
	return &Service{
		store:    store,
		prefix:   prefix,
		observer: observer,
		logger:   slog.Default(),
	}
}

// Roadmap generates the roadmap for sel.
func (s *Service) Roadmap(sel roadmap.Selection) roadmap.CareerRoadmap {
	return roadmap.Generate(sel)
}

// Progress loads the completion of sel and publishes the recomputed percentage.
func (s *Service) Progress(ctx context.Context, sel roadmap.Selection) CareerStatus {
	key := progress.CareerKey(s.prefix, sel)
	return s.careerStatus(key, sel, s.store.Load(ctx, key))
}

// Toggle flips one skill of the roadmap for sel.
func (s *Service) Toggle(ctx context.Context, sel roadmap.Selection, phaseID, skill string) (CareerStatus, error) {
	r := roadmap.Generate(sel)
	phase, ok := r.Phase(phaseID)
	if !ok || !slices.Contains(phase.Skills, skill) {
		return CareerStatus{}, fmt.Errorf("%w: %s/%s", ErrUnknownSkill, phaseID, skill)
	}

	key := progress.CareerKey(s.prefix, sel)
	m := s.store.Toggle(ctx, key, phase.Key(skill))
	s.logger.Debug("skill toggled", "key", key, "phase", phaseID, "skill", skill, "done", m.Done(phase.Key(skill)))
	return s.careerStatus(key, sel, m), nil
}

// Reset clears all completion of sel.
func (s *Service) Reset(ctx context.Context, sel roadmap.Selection) CareerStatus {
	key := progress.CareerKey(s.prefix, sel)
	s.store.Reset(ctx, key)
	return s.careerStatus(key, sel, progress.CompletionMap{})
}

// Recommend suggests what to study next for sel.
func (s *Service) Recommend(ctx context.Context, sel roadmap.Selection) recommend.Recommendation {
	key := progress.CareerKey(s.prefix, sel)
	return recommend.Recommend(roadmap.Generate(sel), s.store.Load(ctx, key))
}

func (s *Service) careerStatus(key string, sel roadmap.Selection, m progress.CompletionMap) CareerStatus {
	r := roadmap.Generate(sel)
	p := progress.Compute(r, m)
	s.publish(key, p.Percentage)
	return CareerStatus{
		Key:      key,
		Roadmap:  r,
		Done:     doneKeys(r, m),
		Progress: p,
	}
}

// Track loads the step checklist of role and level.
func (s *Service) Track(ctx context.Context, role roadmap.Role, level roadmap.Level) TrackStatus {
	key := progress.TrackKey(s.prefix, role, level)
	return s.trackStatus(key, roadmap.BuildTrack(role, level), s.store.Load(ctx, key))
}

// ToggleStep flips one step of the checklist.
func (s *Service) ToggleStep(ctx context.Context, role roadmap.Role, level roadmap.Level, stepID string) (TrackStatus, error) {
	t := roadmap.BuildTrack(role, level)
	phase, step, ok := t.FindStep(stepID)
	if !ok {
		return TrackStatus{}, fmt.Errorf("%w: %s", ErrUnknownSkill, stepID)
	}
	key := progress.TrackKey(s.prefix, role, level)
	m := s.store.Toggle(ctx, key, roadmap.SkillKey{PhaseID: phase.ID, Skill: step.ID})
	return s.trackStatus(key, t, m), nil
}

// ResetTrack clears all completion of the checklist.
func (s *Service) ResetTrack(ctx context.Context, role roadmap.Role, level roadmap.Level) TrackStatus {
	key := progress.TrackKey(s.prefix, role, level)
	s.store.Reset(ctx, key)
	return s.trackStatus(key, roadmap.BuildTrack(role, level), progress.CompletionMap{})
}

func (s *Service) trackStatus(key string, t roadmap.Track, m progress.CompletionMap) TrackStatus {
	p := progress.Compute(t, m)
	s.publish(key, p.Percentage)
	return TrackStatus{
		Key:      key,
		Track:    t,
		Done:     doneKeys(t, m),
		Progress: p,
	}
}

// overviewConcurrency bounds parallel completion loads in Overview.
const overviewConcurrency = 4

// Overview reports every roadmap selection with at least one done skill,
// in Roles x Levels x Timelines order. Loads run concurrently.
func (s *Service) Overview(ctx context.Context) ([]OverviewEntry, error) {
	sels := roadmap.AllSelections()
	results := make([]*OverviewEntry, len(sels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, sel := range sels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			key := progress.CareerKey(s.prefix, sel)
			r := roadmap.Generate(sel)
			p := progress.Compute(r, s.store.Load(gctx, key))
			if p.Completed > 0 {
				results[i] = &OverviewEntry{Selection: sel, Key: key, Progress: p}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]OverviewEntry, 0)
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

// AddGapSkill records a skill gap in the user profile.
func (s *Service) AddGapSkill(label string) error {
	if s.observer == nil {
		return nil
	}
	return s.observer.PublishGapSkill(label)
}

// ScanResume records every fundamentals or core skill of sel that text does
// not mention as a skill gap and returns them.
func (s *Service) ScanResume(sel roadmap.Selection, text string) ([]string, error) {
	missing := gaps.Detect(roadmap.Generate(sel), text)
	for _, label := range missing {
		if err := s.AddGapSkill(label); err != nil {
			return nil, fmt.Errorf("recording gap %q: %w", label, err)
		}
	}
	return missing, nil
}

func (s *Service) publish(key string, pct int) {
	if s.observer != nil {
		s.observer.OnProgressChanged(key, pct)
	}
}

// doneKeys lists the done identities src currently defines.
func doneKeys(src progress.Source, m progress.CompletionMap) []roadmap.SkillKey {
	done := make([]roadmap.SkillKey, 0)
	for _, k := range src.SkillKeys() {
		if m.Done(k) {
			done = append(done, k)
		}
	}
	return done
}
