package roadmap

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// phaseTemplate describes one phase before it is resolved for a role and level.
type phaseTemplate struct {
	ID          string      `yaml:"id"`
	BaseWeeks   int         `yaml:"base_weeks"`
	Title       textVariant `yaml:"title"`
	Description textVariant `yaml:"description"`
	Skills      listVariant `yaml:"skills"`
	Resources   listVariant `yaml:"resources"`
}

type textVariant struct {
	ByRole  map[string]string `yaml:"by_role"`
	ByLevel map[string]string `yaml:"by_level"`
	Default string            `yaml:"default"`
}

func (v textVariant) resolve(role Role, level Level) string {
	if s, ok := v.ByRole[string(role)]; ok {
		return s
	}
	if s, ok := v.ByLevel[string(level)]; ok {
		return s
	}
	return v.Default
}

type listVariant struct {
	ByRole  map[string][]string `yaml:"by_role"`
	ByLevel map[string][]string `yaml:"by_level"`
	Default []string            `yaml:"default"`
}

// resolve returns a fresh copy so callers may modify the result.
func (v listVariant) resolve(role Role, level Level) []string {
	if s, ok := v.ByRole[string(role)]; ok {
		return slices.Clone(s)
	}
	if s, ok := v.ByLevel[string(level)]; ok {
		return slices.Clone(s)
	}
	return slices.Clone(v.Default)
}

type templateFile struct {
	Phases []phaseTemplate `yaml:"phases"`
}

var phaseTemplates = mustParseTemplates(templatesYAML)

func mustParseTemplates(data []byte) []phaseTemplate {
	tpls, err := parseTemplates(data)
	if err != nil {
		panic(fmt.Sprintf("roadmap: embedded templates: %v", err))
	}
	return tpls
}

func parseTemplates(data []byte) ([]phaseTemplate, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	if err := validateTemplates(f.Phases); err != nil {
		return nil, err
	}
	return f.Phases, nil
}

// validateTemplates enforces the fixed phase order and that every role and
// level resolves to a non-empty skill list.
func validateTemplates(tpls []phaseTemplate) error {
	if len(tpls) != len(PhaseOrder) {
		return fmt.Errorf("expected %d phases, got %d", len(PhaseOrder), len(tpls))
	}
	for i, t := range tpls {
		if t.ID != PhaseOrder[i] {
			return fmt.Errorf("phase %d: id %q, want %q", i, t.ID, PhaseOrder[i])
		}
		if t.BaseWeeks < 1 {
			return fmt.Errorf("phase %q: base_weeks must be positive, got %d", t.ID, t.BaseWeeks)
		}
		for _, r := range Roles {
			for _, l := range Levels {
				if len(t.Skills.resolve(r, l)) == 0 {
					return fmt.Errorf("phase %q: no skills for %s/%s", t.ID, r, l)
				}
				if t.Title.resolve(r, l) == "" {
					return fmt.Errorf("phase %q: no title for %s/%s", t.ID, r, l)
				}
			}
		}
	}
	return nil
}
