package roadmap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidLevel    = errors.New("invalid level")
	ErrInvalidTimeline = errors.New("invalid timeline")
)

// Role is the career track a roadmap targets.
type Role string

const (
	RoleFrontend  Role = "frontend"
	RoleBackend   Role = "backend"
	RoleFullstack Role = "fullstack"
	RoleDataAI    Role = "data-ai"
)

// Roles lists every supported role in display order.
var Roles = []Role{RoleFrontend, RoleBackend, RoleFullstack, RoleDataAI}

// Level is the user's stated experience tier.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// Timeline is the overall plan duration chosen by the user.
type Timeline string

const (
	Timeline3Month  Timeline = "3-month"
	Timeline6Month  Timeline = "6-month"
	Timeline12Month Timeline = "12-month"
)

var Timelines = []Timeline{Timeline3Month, Timeline6Month, Timeline12Month}

// timelineAliases accepts the short spellings used by older clients.
var timelineAliases = map[string]Timeline{
	"3m":  Timeline3Month,
	"6m":  Timeline6Month,
	"12m": Timeline12Month,
}

func ParseRole(s string) (Role, error) {
	r := Role(normalize(s))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidRole, s, joinValues(Roles))
}

func ParseLevel(s string) (Level, error) {
	l := Level(normalize(s))
	for _, known := range Levels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidLevel, s, joinValues(Levels))
}

// ParseTimeline accepts both the canonical "6-month" form and the short "6m" alias.
func ParseTimeline(s string) (Timeline, error) {
	n := normalize(s)
	if t, ok := timelineAliases[n]; ok {
		return t, nil
	}
	t := Timeline(n)
	for _, known := range Timelines {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidTimeline, s, joinValues(Timelines))
}

// Short returns the compact spelling ("6m") used in storage keys.
func (t Timeline) Short() string {
	for alias, full := range timelineAliases {
		if full == t {
			return alias
		}
	}
	return string(t)
}

// Multiplier scales template durations to the chosen plan length.
func (t Timeline) Multiplier() float64 {
	switch t {
	case Timeline3Month:
		return 0.6
	case Timeline12Month:
		return 1.6
	default:
		return 1.0
	}
}

// Adjustment scales template durations to the user's experience.
func (l Level) Adjustment() float64 {
	switch l {
	case LevelBeginner:
		return 1.1
	case LevelAdvanced:
		return 0.9
	default:
		return 1.0
	}
}

// Selection is a validated (role, level, timeline) triple.
type Selection struct {
	Role     Role     `json:"role"`
	Level    Level    `json:"level"`
	Timeline Timeline `json:"timeline"`
}

// ParseSelection validates raw user input. Errors wrap ErrInvalidRole,
// ErrInvalidLevel or ErrInvalidTimeline.
func ParseSelection(role, level, timeline string) (Selection, error) {
	r, err := ParseRole(role)
	if err != nil {
		return Selection{}, err
	}
	l, err := ParseLevel(level)
	if err != nil {
		return Selection{}, err
	}
	t, err := ParseTimeline(timeline)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Role: r, Level: l, Timeline: t}, nil
}

// AllSelections enumerates every valid combination in role, level, timeline order.
func AllSelections() []Selection {
	out := make([]Selection, 0, len(Roles)*len(Levels)*len(Timelines))
	for _, r := range Roles {
		for _, l := range Levels {
			for _, t := range Timelines {
				out = append(out, Selection{Role: r, Level: l, Timeline: t})
			}
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func joinValues[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
