package profile

import "time"

// ActivityType tags an entry of the activity log.
type ActivityType string

const ActivityRoadmapUpdated ActivityType = "roadmap_updated"

// RoadmapSummary is the user's roadmap snapshot as seen by other features.
type RoadmapSummary struct {
	ProgressPct   int        `json:"progress_pct"`
	WeakSkills    []string   `json:"weak_skills"`
	LastUpdatedAt *time.Time `json:"last_updated_at"`
}

// ActivityEvent is one entry of the activity log.
type ActivityEvent struct {
	ID    string       `json:"id"`
	Type  ActivityType `json:"type"`
	Label string       `json:"label"`
	At    time.Time    `json:"at"`
}

// State is everything the roadmap features keep in the user profile.
// Activity is ordered newest first.
type State struct {
	Roadmap  RoadmapSummary  `json:"roadmap"`
	Activity []ActivityEvent `json:"activity"`
}

// SummaryUpdate is a partial RoadmapSummary. Nil fields are left unchanged;
// a nil LastUpdatedAt is stamped with the current time.
type SummaryUpdate struct {
	ProgressPct   *int
	WeakSkills    []string
	LastUpdatedAt *time.Time
}
