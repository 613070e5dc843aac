package curriculum

import (
	"fmt"
	"strings"

	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/domain"
)

// Deficit codes.
const (
	DeficitTooFewSections   = "too_few_sections"
	DeficitSectionTooShort  = "section_too_short"
	DeficitTooFewWords      = "too_few_words"
	DeficitTooFewReferences = "too_few_references"
)

// Deficit is one way a chapter falls short of the depth policy.
type Deficit struct {
	Code     string `json:"code"`
	Section  string `json:"section,omitempty"`
	Want     int    `json:"want"`
	Got      int    `json:"got"`
	Advisory bool   `json:"advisory,omitempty"`
}

// String renders the deficit as a refinement instruction.
func (d Deficit) String() string {
	switch d.Code {
	case DeficitTooFewSections:
		return fmt.Sprintf("The chapter needs at least %d sections; it has %d.", d.Want, d.Got)
	case DeficitSectionTooShort:
		return fmt.Sprintf("Section %q needs at least %d words; it has %d.", d.Section, d.Want, d.Got)
	case DeficitTooFewWords:
		return fmt.Sprintf("The chapter should total at least %d words; it has %d.", d.Want, d.Got)
	case DeficitTooFewReferences:
		return fmt.Sprintf("Include at least %d references (or set ai_generated true if none are real); it has %d.", d.Want, d.Got)
	}
	return fmt.Sprintf("%s: want %d, got %d", d.Code, d.Want, d.Got)
}

// Policy holds the chapter depth minimums.
type Policy struct {
	MinSections        int
	MaxSections        int
	MinTotalWords      int
	MinWordsPerSection int
	MinReferences      int
}

// DefaultPolicy returns the stock minimums.
func DefaultPolicy() Policy {
	return Policy{
		MinSections:        4,
		MaxSections:        8,
		MinTotalWords:      1200,
		MinWordsPerSection: 150,
		MinReferences:      3,
	}
}

// PolicyFromConfig builds a policy, keeping the section bounds within [4, 8].
func PolicyFromConfig(cfg *config.GenerationConfig) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	if cfg.MaxSections > 0 && cfg.MaxSections <= 8 {
		p.MaxSections = cfg.MaxSections
	}
	if cfg.MinSections >= 4 && cfg.MinSections <= p.MaxSections {
		p.MinSections = cfg.MinSections
	}
	if p.MinSections > p.MaxSections {
		p.MinSections = p.MaxSections
	}
	if cfg.MinTotalWords > 0 {
		p.MinTotalWords = cfg.MinTotalWords
	}
	if cfg.MinWordsPerSection > 0 {
		p.MinWordsPerSection = cfg.MinWordsPerSection
	}
	if cfg.MinReferences >= 0 {
		p.MinReferences = cfg.MinReferences
	}
	return p
}

// Evaluate lists the chapter's deficits. The total word target is advisory.
func (p Policy) Evaluate(ch *domain.Chapter) []Deficit {
	var deficits []Deficit

	if n := len(ch.Sections); n < p.MinSections {
		deficits = append(deficits, Deficit{Code: DeficitTooFewSections, Want: p.MinSections, Got: n})
	}

	total := 0
	for _, s := range ch.Sections {
		words := CountWords(s.Body)
		total += words
		if words < p.MinWordsPerSection {
			deficits = append(deficits, Deficit{
				Code:    DeficitSectionTooShort,
				Section: s.Heading,
				Want:    p.MinWordsPerSection,
				Got:     words,
			})
		}
	}
	if total < p.MinTotalWords {
		deficits = append(deficits, Deficit{Code: DeficitTooFewWords, Want: p.MinTotalWords, Got: total, Advisory: true})
	}

	if !ch.AIGenerated && len(ch.References) < p.MinReferences {
		deficits = append(deficits, Deficit{Code: DeficitTooFewReferences, Want: p.MinReferences, Got: len(ch.References)})
	}
	return deficits
}

// HasRequired reports whether any deficit is not advisory.
func HasRequired(deficits []Deficit) bool {
	for _, d := range deficits {
		if !d.Advisory {
			return true
		}
	}
	return false
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
