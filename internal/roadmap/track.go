package roadmap

// Step is a single checklist item of a Track phase. Its ID is unique across
// the whole track.
type Step struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// TrackPhase groups the steps of one stage of a Track.
type TrackPhase struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// Track is the compact step checklist for a role and level. Unlike
// CareerRoadmap it carries no timeline and no durations.
type Track struct {
	Role   Role         `json:"role"`
	Level  Level        `json:"level"`
	Phases []TrackPhase `json:"phases"`
}

// SkillKeys lists every step identity. Skill holds the step id.
func (t Track) SkillKeys() []SkillKey {
	var keys []SkillKey
	for _, p := range t.Phases {
		for _, s := range p.Steps {
			keys = append(keys, SkillKey{PhaseID: p.ID, Skill: s.ID})
		}
	}
	return keys
}

// FindStep returns the phase containing the step with the given id.
func (t Track) FindStep(stepID string) (TrackPhase, Step, bool) {
	for _, p := range t.Phases {
		for _, s := range p.Steps {
			if s.ID == stepID {
				return p, s, true
			}
		}
	}
	return TrackPhase{}, Step{}, false
}

func difficultyTag(level Level) string {
	switch level {
	case LevelBeginner:
		return "Start here"
	case LevelIntermediate:
		return "Level up"
	default:
		return "Deep dive"
	}
}

func coreSuffix(role Role) string {
	switch role {
	case RoleFrontend:
		return "UI"
	case RoleBackend:
		return "API"
	default:
		return "end‑to‑end"
	}
}

// BuildTrack returns the step checklist for a role and level.
func BuildTrack(role Role, level Level) Track {
	backend := role == RoleBackend

	languageDesc := "Solidify modern JavaScript + TypeScript and browser APIs."
	frameworkLabel := "React 18 patterns"
	frameworkDesc := "Learn hooks, composition, suspense and error boundaries with strict TypeScript."
	if backend {
		languageDesc = "Consolidate TypeScript + Node.js primitives and async patterns."
		frameworkLabel = "FastAPI / API design"
		frameworkDesc = "Design typed REST endpoints, request validation and error envelopes."
	}

	return Track{
		Role:  role,
		Level: level,
		Phases: []TrackPhase{
			{
				ID:    PhaseFundamentals,
				Title: "Phase 1 · Fundamentals (" + difficultyTag(level) + ")",
				Steps: []Step{
					{ID: "fundamentals-language", Label: "Language essentials", Description: languageDesc},
					{
						ID:          "fundamentals-git",
						Label:       "Git & environments",
						Description: "Work with feature branches, clean commits and .env‑driven configuration per environment.",
					},
				},
			},
			{
				ID:    PhaseCore,
				Title: "Phase 2 · Core " + coreSuffix(role) + " skills",
				Steps: []Step{
					{ID: "core-framework", Label: frameworkLabel, Description: frameworkDesc},
					{
						ID:          "core-data",
						Label:       "Data & state",
						Description: "Practice data‑fetching, caching and local state orchestration with clear typing.",
					},
				},
			},
			{
				ID:    PhaseProjects,
				Title: "Phase 3 · Portfolio projects",
				Steps: []Step{
					{
						ID:          "projects-main",
						Label:       "Flagship project",
						Description: "Ship one end‑to‑end project with auth, routing, state, and a polished UI demonstrating your chosen role.",
					},
					{
						ID:          "projects-iter",
						Label:       "Iteration & refactor",
						Description: "Refine the project based on feedback: tighten API contracts, performance and UX polish.",
					},
				},
			},
			{
				ID:    PhaseInterview,
				Title: "Phase 4 · Interview preparation",
				Steps: []Step{
					{
						ID:          "interview-questions",
						Label:       "System & behavioral bank",
						Description: "Assemble 20–30 system design and behavioral questions mapped to your projects.",
					},
					{
						ID:          "interview-mocks",
						Label:       "Mock interview loop",
						Description: "Run recorded mock interviews, review answers, and update notes after each session.",
					},
				},
			},
		},
	}
}
