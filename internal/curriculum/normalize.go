package curriculum

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/coursegen/internal/domain"
)

// aliases maps a canonical key to the synonyms backends have been seen using.
type aliases map[string][]string

var topLevelAliases = aliases{
	"curriculum16": {"curriculum", "weeks", "curriculum_16"},
	"week1Chapter": {"week1_chapter", "chapter", "week1", "weekOneChapter"},
}

var weekAliases = aliases{
	"week":       {"week_number", "weekNumber", "number"},
	"goals":      {"objectives", "learning_goals", "learningGoals"},
	"topics":     {"topic", "subtopics"},
	"activity":   {"activities", "project"},
	"assessment": {"assessments", "evaluation"},
}

var chapterAliases = aliases{
	"title":                {"chapter_title", "heading"},
	"abstract":             {"summary", "overview"},
	"sections":             {"parts"},
	"figures":              {"visuals", "images"},
	"references":           {"citations", "sources", "bibliography"},
	"citations_style":      {"citationsStyle", "citationStyle", "citation_style"},
	"intext_citations":     {"intextCitations", "inTextCitations"},
	"ai_generated":         {"aiGenerated"},
	"estimated_word_count": {"estimatedWordCount", "word_count", "wordCount"},
}

var sectionAliases = aliases{
	"heading": {"title", "header", "name"},
	"body":    {"content", "text", "paragraphs"},
}

var figureAliases = aliases{
	"suggested_visual": {"suggestedVisual", "description", "visual"},
}

var referenceAliases = aliases{
	"url":       {"URL", "link", "href"},
	"author":    {"authors"},
	"publisher": {"journal", "source"},
}

var referenceTypes = map[string]bool{"web": true, "book": true, "article": true, "report": true}

var digitsRe = regexp.MustCompile(`\d+`)

func (a aliases) apply(m map[string]interface{}) {
	for canon, alts := range a {
		if _, ok := m[canon]; ok {
			continue
		}
		for _, alt := range alts {
			if v, ok := m[alt]; ok {
				m[canon] = v
				delete(m, alt)
				break
			}
		}
	}
}

// normalize rewrites doc in place into the canonical schema.
func normalize(doc map[string]interface{}) error {
	topLevelAliases.apply(doc)

	weeks, ok := doc["curriculum16"].([]interface{})
	if !ok {
		return fmt.Errorf("%w: missing curriculum16", domain.ErrSchemaInvalid)
	}
	chapter, ok := doc["week1Chapter"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: missing week1Chapter", domain.ErrSchemaInvalid)
	}

	for _, w := range weeks {
		if m, ok := w.(map[string]interface{}); ok {
			normalizeWeek(m)
		}
	}
	normalizeChapter(chapter)
	return nil
}

func normalizeWeek(m map[string]interface{}) {
	weekAliases.apply(m)
	if n, ok := toInt(m["week"]); ok {
		m["week"] = n
	}
	m["goals"] = toStringSlice(m["goals"])
	m["topics"] = toStringSlice(m["topics"])
	m["activity"] = toText(m["activity"], "; ")
	m["assessment"] = toText(m["assessment"], "; ")
}

func normalizeChapter(m map[string]interface{}) {
	chapterAliases.apply(m)

	m["title"] = toText(m["title"], " ")
	m["abstract"] = toText(m["abstract"], "\n\n")

	if sections, ok := m["sections"].([]interface{}); ok {
		for _, s := range sections {
			if sm, ok := s.(map[string]interface{}); ok {
				sectionAliases.apply(sm)
				sm["heading"] = toText(sm["heading"], " ")
				sm["body"] = toText(sm["body"], "\n\n")
			}
		}
	}

	if figures, ok := m["figures"].([]interface{}); ok {
		for _, f := range figures {
			if fm, ok := f.(map[string]interface{}); ok {
				figureAliases.apply(fm)
			}
		}
	}

	if refs, ok := m["references"].([]interface{}); ok {
		for i, r := range refs {
			refs[i] = normalizeReference(r)
		}
	}

	style := strings.ToUpper(strings.TrimSpace(toText(m["citations_style"], "")))
	if style == "" {
		style = "APA"
	}
	m["citations_style"] = style

	m["intext_citations"] = toBool(m["intext_citations"])
	m["ai_generated"] = toBool(m["ai_generated"])
	if n, ok := toInt(m["estimated_word_count"]); ok {
		m["estimated_word_count"] = n
	} else {
		delete(m, "estimated_word_count")
	}
}

func normalizeReference(r interface{}) interface{} {
	switch v := r.(type) {
	case string:
		return map[string]interface{}{"title": v}
	case map[string]interface{}:
		referenceAliases.apply(v)
		v["author"] = toText(v["author"], ", ")
		v["title"] = toText(v["title"], " ")
		v["url"] = toText(v["url"], "")
		v["publisher"] = toText(v["publisher"], " ")
		v["year"] = toText(v["year"], "")
		t := strings.ToLower(toText(v["type"], ""))
		if !referenceTypes[t] {
			t = ""
		}
		v["type"] = t
		return v
	}
	return r
}

// toInt accepts numbers and numeric strings such as "3" or "Week 3".
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if d := digitsRe.FindString(n); d != "" {
			i, err := strconv.Atoi(d)
			return i, err == nil
		}
	}
	return 0, false
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	}
	return false
}

// toText flattens scalars and lists into a string, joining list items with sep.
func toText(v interface{}, sep string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := toText(item, sep); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := toText(item, " "); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
