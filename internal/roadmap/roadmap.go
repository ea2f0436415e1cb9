package roadmap

import (
	"cmp"
	"slices"
)

// DepthMarker is appended to every skill label of an advanced roadmap.
const DepthMarker = "(deeper)"

// Phase identifiers, in roadmap order.
const (
	PhaseFundamentals = "fundamentals"
	PhaseCore         = "core"
	PhaseProjects     = "projects"
	PhaseInterview    = "interview"
)

// PhaseOrder is the fixed order every generated roadmap follows.
var PhaseOrder = []string{PhaseFundamentals, PhaseCore, PhaseProjects, PhaseInterview}

// SkillKey identifies a skill inside a roadmap. The phase id disambiguates
// labels that repeat across phases.
type SkillKey struct {
	PhaseID string `json:"phase"`
	Skill   string `json:"skill"`
}

// Compare orders keys by phase id, then skill.
func (k SkillKey) Compare(o SkillKey) int {
	if c := cmp.Compare(k.PhaseID, o.PhaseID); c != 0 {
		return c
	}
	return cmp.Compare(k.Skill, o.Skill)
}

func (k SkillKey) String() string {
	return k.PhaseID + "/" + k.Skill
}

// SortKeys sorts keys in place using SkillKey.Compare.
func SortKeys(keys []SkillKey) {
	slices.SortFunc(keys, SkillKey.Compare)
}

// RoadmapPhase is one stage of a career roadmap.
type RoadmapPhase struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Skills         []string `json:"skills"`
	Resources      []string `json:"resources"`
	EstimatedWeeks int      `json:"estimated_weeks"`
}

// Key returns the identity of the given skill in this phase.
func (p RoadmapPhase) Key(skill string) SkillKey {
	return SkillKey{PhaseID: p.ID, Skill: skill}
}

// CareerRoadmap is the full multi-phase plan for a selection.
type CareerRoadmap struct {
	Role     Role           `json:"role"`
	Level    Level          `json:"level"`
	Timeline Timeline       `json:"timeline"`
	Phases   []RoadmapPhase `json:"phases"`
}

// SkillKeys lists every skill identity in phase then skill order.
func (r CareerRoadmap) SkillKeys() []SkillKey {
	var keys []SkillKey
	for _, p := range r.Phases {
		for _, s := range p.Skills {
			keys = append(keys, p.Key(s))
		}
	}
	return keys
}

// TotalWeeks sums the estimated duration of every phase.
func (r CareerRoadmap) TotalWeeks() int {
	total := 0
	for _, p := range r.Phases {
		total += p.EstimatedWeeks
	}
	return total
}

// Phase looks up a phase by id.
func (r CareerRoadmap) Phase(id string) (RoadmapPhase, bool) {
	for _, p := range r.Phases {
		if p.ID == id {
			return p, true
		}
	}
	return RoadmapPhase{}, false
}
