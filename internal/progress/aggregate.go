package progress

import (
	"math"

	"github.com/kalambet/careerpath/internal/roadmap"
)

// Source is anything that enumerates the skill identities it tracks, such as
// roadmap.CareerRoadmap and roadmap.Track.
type Source interface {
	SkillKeys() []roadmap.SkillKey
}

// Progress is the aggregate completion of a Source.
type Progress struct {
	Completed  int             `json:"completed"`
	Total      int             `json:"total"`
	Percentage int             `json:"percentage"`
	Phases     []PhaseProgress `json:"phases"`
}

// PhaseProgress is the completion of the skills of a single phase.
type PhaseProgress struct {
	PhaseID   string  `json:"phase_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
}

// Compute counts done skills of src in m. Only the skills src currently
// defines are counted; stale entries in m are ignored.
func Compute(src Source, m CompletionMap) Progress {
	var p Progress
	index := make(map[string]int)

	for _, k := range src.SkillKeys() {
		i, ok := index[k.PhaseID]
		if !ok {
			i = len(p.Phases)
			index[k.PhaseID] = i
			p.Phases = append(p.Phases, PhaseProgress{PhaseID: k.PhaseID})
		}
		p.Phases[i].Total++
		p.Total++
		if m.Done(k) {
			p.Phases[i].Completed++
			p.Completed++
		}
	}

	for i := range p.Phases {
		ph := &p.Phases[i]
		ph.Ratio = float64(ph.Completed) / float64(max(1, ph.Total))
	}
	p.Percentage = Percentage(p.Completed, p.Total)
	return p
}

// Percentage rounds done/total to a whole percent. A zero total yields zero.
func Percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
