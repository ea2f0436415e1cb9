package progress

import (
	"fmt"

	"github.com/kalambet/careerpath/internal/roadmap"
)

// DefaultKeyPrefix namespaces persisted completion maps.
const DefaultKeyPrefix = "vm"

// CareerKey is the storage key of a generated career roadmap's completion map:
// "<prefix>_career_roadmap_<role>_<level>_<3m|6m|12m>". The short timeline
// spelling keeps keys written by earlier clients readable.
func CareerKey(prefix string, sel roadmap.Selection) string {
	return fmt.Sprintf("%s_career_roadmap_%s_%s_%s", prefix, sel.Role, sel.Level, sel.Timeline.Short())
}

// TrackKey is the storage key of a step checklist's completion map:
// "<prefix>_roadmap_<role>_<level>". It never collides with CareerKey.
func TrackKey(prefix string, role roadmap.Role, level roadmap.Level) string {
	return fmt.Sprintf("%s_roadmap_%s_%s", prefix, role, level)
}
