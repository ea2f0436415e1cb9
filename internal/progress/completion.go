package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/kalambet/careerpath/internal/roadmap"
)

// ErrMalformed marks persisted completion data that exists but cannot be
// decoded. Unlike a read failure it will not go away on retry.
var ErrMalformed = errors.New("malformed completion data")

// CompletionMap records which skills are done. Missing keys are not done.
type CompletionMap map[roadmap.SkillKey]bool

// Done reports whether k is marked done.
func (m CompletionMap) Done(k roadmap.SkillKey) bool {
	return m[k]
}

// Clone returns an independent copy. The clone of a nil map is empty, not nil.
func (m CompletionMap) Clone() CompletionMap {
	out := make(CompletionMap, len(m))
	maps.Copy(out, m)
	return out
}

// Keys returns every recorded key, done or not, in SkillKey order.
func (m CompletionMap) Keys() []roadmap.SkillKey {
	keys := make([]roadmap.SkillKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	roadmap.SortKeys(keys)
	return keys
}

// completionEntry is the persisted form of a single map entry.
type completionEntry struct {
	Phase string `json:"phase"`
	Skill string `json:"skill"`
	Done  bool   `json:"done"`
}

// legacySeparator joins phase id and skill label in the older object encoding.
const legacySeparator = "::"

// MarshalCompletion encodes m as a JSON array sorted by key, so equal maps
// always encode to identical bytes.
func MarshalCompletion(m CompletionMap) ([]byte, error) {
	entries := make([]completionEntry, 0, len(m))
	for _, k := range m.Keys() {
		entries = append(entries, completionEntry{Phase: k.PhaseID, Skill: k.Skill, Done: m[k]})
	}
	return json.Marshal(entries)
}

// UnmarshalCompletion decodes either the array encoding written by
// MarshalCompletion or the legacy {"<phase>::<skill>": bool} object.
// Empty input decodes to an empty map.
func UnmarshalCompletion(data []byte) (CompletionMap, error) {
	data = bytes.TrimSpace(data)
	m := make(CompletionMap)
	if len(data) == 0 {
		return m, nil
	}

	switch data[0] {
	case '[':
		var entries []completionEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decoding completion entries: %w", err)
		}
		for _, e := range entries {
			if e.Phase == "" || e.Skill == "" {
				return nil, errors.New("completion entry with empty phase or skill")
			}
			m[roadmap.SkillKey{PhaseID: e.Phase, Skill: e.Skill}] = e.Done
		}
	case '{':
		var legacy map[string]bool
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decoding legacy completion map: %w", err)
		}
		for id, done := range legacy {
			phase, skill, ok := strings.Cut(id, legacySeparator)
			if !ok || phase == "" || skill == "" {
				return nil, fmt.Errorf("legacy completion id %q has no phase separator", id)
			}
			m[roadmap.SkillKey{PhaseID: phase, Skill: skill}] = done
		}
	default:
		return nil, errors.New("unrecognized completion encoding")
	}
	return m, nil
}
