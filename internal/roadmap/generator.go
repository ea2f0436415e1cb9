package roadmap

import "math"

// Generate builds the roadmap for a selection. It is a pure function of its
// inputs: the same selection always yields an identical roadmap.
func Generate(sel Selection) CareerRoadmap {
	mult := sel.Timeline.Multiplier()
	levelMult := sel.Level.Adjustment()

	phases := make([]RoadmapPhase, 0, len(phaseTemplates))
	for _, tpl := range phaseTemplates {
		skills := tpl.Skills.resolve(sel.Role, sel.Level)
		if sel.Level == LevelAdvanced {
			for i, s := range skills {
				skills[i] = s + " " + DepthMarker
			}
		}

		phases = append(phases, RoadmapPhase{
			ID:             tpl.ID,
			Title:          tpl.Title.resolve(sel.Role, sel.Level),
			Description:    tpl.Description.resolve(sel.Role, sel.Level),
			Skills:         skills,
			Resources:      tpl.Resources.resolve(sel.Role, sel.Level),
			EstimatedWeeks: scaleWeeks(tpl.BaseWeeks, mult, levelMult),
		})
	}

	return CareerRoadmap{
		Role:     sel.Role,
		Level:    sel.Level,
		Timeline: sel.Timeline,
		Phases:   phases,
	}
}

// scaleWeeks rounds half away from zero and never returns less than one week.
func scaleWeeks(base int, mult, levelMult float64) int {
	weeks := int(math.Round(float64(base) * mult * levelMult))
	return max(1, weeks)
}
