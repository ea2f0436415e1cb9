// Package recommend picks what to study next from a roadmap and its
// completion map.
package recommend

import (
	"github.com/kalambet/careerpath/internal/progress"
	"github.com/kalambet/careerpath/internal/roadmap"
)

// Recommendation is advisory output. Nil fields encode as JSON null.
type Recommendation struct {
	NextSkill         *string `json:"next_skill"`
	WeakestPhaseTitle *string `json:"weakest_phase_title"`
	SuggestedProject  *string `json:"suggested_project"`
}

var projects = map[roadmap.Role]string{
	roadmap.RoleFrontend:  "Build a small dashboard with filters, charts, and dark/light mode toggle.",
	roadmap.RoleFullstack: "Build a small dashboard with filters, charts, and dark/light mode toggle.",
	roadmap.RoleBackend:   "Design a metrics API with authentication, pagination, and clear error envelopes.",
	roadmap.RoleDataAI:    "Create a KPI dashboard for a sample product (signups, activation, retention, revenue).",
}

// SuggestedProject returns the static project idea for role, or nil when the
// role has none.
func SuggestedProject(role roadmap.Role) *string {
	p, ok := projects[role]
	if !ok {
		return nil
	}
	return &p
}

// Recommend selects the phase with the strictly lowest completion ratio,
// first in roadmap order on ties, and its first undone skill.
func Recommend(r roadmap.CareerRoadmap, m progress.CompletionMap) Recommendation {
	if len(r.Phases) == 0 {
		return Recommendation{}
	}

	weakest := 0
	lowest := ratio(r.Phases[0], m)
	for i := 1; i < len(r.Phases); i++ {
		if v := ratio(r.Phases[i], m); v < lowest {
			weakest, lowest = i, v
		}
	}

	phase := r.Phases[weakest]
	title := phase.Title
	rec := Recommendation{
		WeakestPhaseTitle: &title,
		SuggestedProject:  SuggestedProject(r.Role),
	}
	for _, s := range phase.Skills {
		if !m.Done(phase.Key(s)) {
			next := s
			rec.NextSkill = &next
			break
		}
	}
	return rec
}

func ratio(p roadmap.RoadmapPhase, m progress.CompletionMap) float64 {
	done := 0
	for _, s := range p.Skills {
		if m.Done(p.Key(s)) {
			done++
		}
	}
	return float64(done) / float64(max(1, len(p.Skills)))
}
