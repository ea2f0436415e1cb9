// Package gaps finds roadmap skills a resume does not mention.
package gaps

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/careerpath/internal/roadmap"
)

// ErrUnsupportedFormat is returned for input that is neither PDF nor UTF-8 text.
var ErrUnsupportedFormat = errors.New("unsupported resume format")

// ScannedPhases are the phases whose skills are matched against a resume.
// Project and interview items describe deliverables, not resume keywords.
var ScannedPhases = []string{roadmap.PhaseFundamentals, roadmap.PhaseCore}

// ReadFile extracts plain text from the resume at path.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading resume: %w", err)
	}
	return ExtractText(filepath.Base(path), data)
}

// ExtractText returns the plain text of a resume. PDFs are detected by
// extension or magic bytes; anything else must be valid UTF-8.
func ExtractText(filename string, data []byte) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-")) {
		return pdfText(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	return string(data), nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed documents.
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("parsing pdf: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// Detect returns the skills of the scanned phases of r that text does not
// mention, in roadmap order, without the depth marker and without duplicates.
// A skill counts as mentioned when any of its significant words appears in text.
func Detect(r roadmap.CareerRoadmap, text string) []string {
	words := make(map[string]struct{})
	for _, w := range tokenize(text) {
		words[w] = struct{}{}
	}

	var missing []string
	for _, p := range r.Phases {
		if !slices.Contains(ScannedPhases, p.ID) {
			continue
		}
		for _, s := range p.Skills {
			label := BaseLabel(s)
			if slices.Contains(missing, label) || mentioned(label, words) {
				continue
			}
			missing = append(missing, label)
		}
	}
	return missing
}

// BaseLabel strips the advanced-level depth marker from a skill label.
func BaseLabel(skill string) string {
	return strings.TrimSpace(strings.TrimSuffix(skill, roadmap.DepthMarker))
}

func mentioned(label string, words map[string]struct{}) bool {
	sig := significant(label)
	if len(sig) == 0 {
		return true
	}
	for _, w := range sig {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

// genericWords never decide whether a skill is covered.
var genericWords = map[string]struct{}{
	"and": {}, "the": {}, "with": {}, "for": {}, "your": {}, "one": {},
	"basic": {}, "basics": {}, "refresh": {}, "mental": {}, "model": {},
	"design": {}, "workflow": {}, "handling": {}, "patterns": {}, "building": {},
	"local": {}, "global": {}, "flows": {}, "thinking": {}, "modern": {},
}

func significant(label string) []string {
	var out []string
	for _, w := range tokenize(label) {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		if _, ok := genericWords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

// tokenize lowercases s and splits it into words. '+' and '#' stay part of
// a word so "c++" and "c#" survive.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
