// Package figures resolves inline GENERATE placeholders into images and
// checks in-text citations against a bibliographic index.
package figures

import (
	"regexp"
	"strconv"
	"strings"
)

// placeholderRe matches ![caption](GENERATE: description).
var placeholderRe = regexp.MustCompile(`(?i)!\[([^\]]*)\]\(\s*GENERATE\s*:\s*([^)]*?)\s*\)`)

var referencesHeadingRe = regexp.MustCompile(`(?im)^(#{1,6}\s*references\b|references\s*:)`)

// DefaultDescriptions pad chapters that ask for fewer figures than required.
var DefaultDescriptions = []string{
	"a clean, high-contrast diagram showing the main concept from this chapter, labeled axes and key parts",
	"a simple line or bar chart that illustrates a key numeric example from the chapter, with clear title and axis labels",
}

// DefaultReferences is appended when a chapter has no references heading.
const DefaultReferences = "## References\n" +
	"This chapter was generated by an AI content system using general educational knowledge. " +
	"No specific external sources were cited in this draft.\n"

// Placeholder is one GENERATE marker found in markdown.
type Placeholder struct {
	Caption     string
	Description string
}

// FindPlaceholders returns every placeholder in document order.
func FindPlaceholders(md string) []Placeholder {
	matches := placeholderRe.FindAllStringSubmatch(md, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, Placeholder{Caption: m[1], Description: strings.TrimSpace(m[2])})
	}
	return out
}

// UniqueDescriptions returns the non-empty descriptions, first occurrence first.
func UniqueDescriptions(md string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range FindPlaceholders(md) {
		if p.Description == "" || seen[p.Description] {
			continue
		}
		seen[p.Description] = true
		out = append(out, p.Description)
	}
	return out
}

// EnsurePlaceholders appends synthetic placeholders under a "## Figures"
// heading until md has at least minCount unique descriptions.
func EnsurePlaceholders(md string, minCount int) string {
	have := UniqueDescriptions(md)
	if len(have) >= minCount {
		return md
	}

	present := make(map[string]bool, len(have))
	for _, d := range have {
		present[d] = true
	}

	var extra []string
	figureNo := len(FindPlaceholders(md))
	for _, d := range DefaultDescriptions {
		if len(have)+len(extra) >= minCount {
			break
		}
		if present[d] {
			continue
		}
		figureNo++
		extra = append(extra, "![Figure "+strconv.Itoa(figureNo)+"](GENERATE: "+d+")")
	}
	if len(extra) == 0 {
		return md
	}
	return strings.TrimRight(md, "\n") + "\n\n## Figures\n\n" + strings.Join(extra, "\n\n") + "\n"
}

// Substitute replaces every placeholder: described images with their URL,
// the rest with an italic figure note.
func Substitute(md string, urls map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(md, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		caption, desc := m[1], strings.TrimSpace(m[2])
		if u := urls[desc]; u != "" {
			return "![" + caption + "](" + u + ")"
		}
		return "*Figure: " + desc + "*"
	})
}

// EnsureReferences appends DefaultReferences when md lacks a references heading.
func EnsureReferences(md string) string {
	if referencesHeadingRe.MatchString(md) {
		return md
	}
	return strings.TrimRight(md, "\n") + "\n\n" + DefaultReferences
}
