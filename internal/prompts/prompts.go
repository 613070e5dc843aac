package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Curriculum Prompts (generation job)
// ============================================================================

// CurriculumSystemPrompt sets the role for curriculum generation.
const CurriculumSystemPrompt = `You are an expert educator who produces structured JSON only.
You design 16-week courses that teach a school subject through a learner's passion.
Never wrap the JSON in code fences and never add commentary outside the object.`

// curriculumFormat is the JSON shape the backend must return.
const curriculumFormat = `{
  "curriculum16": [
    {"week": 1, "title": "", "goals": [""], "topics": [""], "activity": "", "assessment": ""}
  ],
  "week1Chapter": {
    "title": "",
    "abstract": "",
    "sections": [{"heading": "", "body": ""}],
    "figures": [{"label": "Figure 1", "caption": "", "suggested_visual": ""}],
    "references": [{"type": "book", "title": "", "author": "", "year": "", "publisher": "", "url": ""}],
    "citations_style": "APA",
    "intext_citations": true,
    "ai_generated": false,
    "estimated_word_count": 0
  }
}`

// CurriculumRequest carries the learner profile into the prompt.
type CurriculumRequest struct {
	Subject     string
	Passion     string
	AgeRange    string
	Likes       []string
	Notes       string
	MinSections int
	MaxSections int
	MinWords    int
	MinSection  int
	MinRefs     int
}

// CurriculumUserPrompt builds the first-attempt user prompt.
func CurriculumUserPrompt(r CurriculumRequest) string {
	likes := "(none)"
	if len(r.Likes) > 0 {
		likes = strings.Join(r.Likes, ", ")
	}
	notes := strings.TrimSpace(r.Notes)
	if notes == "" {
		notes = "(none)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Return STRICT JSON with \"curriculum16\" (exactly 16 items, weeks 1 to 16) and \"week1Chapter\",\n")
	fmt.Fprintf(&b, "for subject %q, age range %q, themed around %q.\n", r.Subject, r.AgeRange, r.Passion)
	fmt.Fprintf(&b, "Likes: %s. Notes: %s.\n\n", likes, notes)
	fmt.Fprintf(&b, "Chapter requirements:\n")
	fmt.Fprintf(&b, "- Between %d and %d sections, each with at least %d words of body text.\n", r.MinSections, r.MaxSections, r.MinSection)
	fmt.Fprintf(&b, "- At least %d words in total across all sections.\n", r.MinWords)
	fmt.Fprintf(&b, "- At least %d references with real titles and absolute http(s) URLs when available.\n", r.MinRefs)
	fmt.Fprintf(&b, "  If you cannot cite real sources, return an empty list and set \"ai_generated\": true.\n")
	fmt.Fprintf(&b, "- citations_style is \"APA\" or \"MLA\".\n")
	fmt.Fprintf(&b, "- Every example should use %s.\n\n", r.Passion)
	fmt.Fprintf(&b, "Format:\n%s", curriculumFormat)
	return b.String()
}

// RefinementPrompt asks for a full corrected object. previous is the last
// response; deficits are one line each.
func RefinementPrompt(original, previous string, deficits []string) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nYour previous answer was:\n")
	b.WriteString(previous)
	b.WriteString("\n\nIt did not meet these requirements:\n")
	for _, d := range deficits {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the FULL corrected JSON object, not a diff. Keep every week and section that was already fine.")
	return b.String()
}

// ============================================================================
// Chapter Prompts (export job)
// ============================================================================

// ChapterSystemPrompt sets the role for chapter writing.
const ChapterSystemPrompt = `You are a helpful educator. Respond ONLY in valid Markdown, no JSON, no backticks.`

// ChapterRequest carries one week's context into the chapter prompt.
type ChapterRequest struct {
	Subject      string
	AgeRange     string
	ChapterTitle string
	Passion      string
	Likes        []string
	WeekTitle    string
	WeekTopics   []string
}

// ChapterUserPrompt builds the five-part chapter prompt.
func ChapterUserPrompt(r ChapterRequest) string {
	lines := []string{
		"You are an educator who writes rich, age-appropriate instructional chapters.",
		"",
		fmt.Sprintf("Write a full teaching chapter for a learner in the age range %q.", r.AgeRange),
		fmt.Sprintf("Main subject/topic: %q.", r.Subject),
		fmt.Sprintf("Chapter title: %q.", r.ChapterTitle),
	}
	if r.WeekTitle != "" {
		lines = append(lines, fmt.Sprintf("This chapter covers the curriculum week %q.", r.WeekTitle))
	}
	if len(r.WeekTopics) > 0 {
		lines = append(lines, "Topics to cover: "+strings.Join(r.WeekTopics, "; ")+".")
	}
	lines = append(lines, "", fmt.Sprintf("The learner really cares about %q.", r.Passion))
	if len(r.Likes) > 0 {
		lines = append(lines, fmt.Sprintf("They especially like: %s. Use those details in your examples, stories, numbers, and situations.",
			strings.Join(r.Likes, ", ")))
	} else {
		lines = append(lines, fmt.Sprintf("Use %q in every example, story, number, and situation.", r.Passion))
	}

	lines = append(lines,
		"",
		"OUTPUT FORMAT (Markdown only):",
		"",
		"# 1. Why This Matters",
		fmt.Sprintf("Explain in 5-6 full paragraphs why this topic matters in real life to someone who loves %s.", r.Passion),
		"",
		"# 2. Core Ideas",
		"Write at least 4 MAJOR sections here (use \"##\" for each), each 4-5 paragraphs long.",
		"In every section include these bold labels in order:",
		"**Definition:**",
		"**How it Works:**",
		fmt.Sprintf("**Real Example (%s):**", r.Passion),
		"**Try It:**",
		"After all sections, add \"Common Mistakes\" as a bullet list.",
		"",
		"# 3. Mini Project",
		"Describe ONE hands-on project for 2-3 days: goal, materials, steps, how to judge success.",
		"",
		"# 4. Practice Questions",
		fmt.Sprintf("Write 10 practice questions. For each: a scenario using %s, the question, then \"Answer:\" with steps.", r.Passion),
		"",
		"# 5. Why This Matters For You",
		"Write 5-6 paragraphs connecting this topic to the learner's own goals.",
		"",
		"Also include a final \"References\" section in APA style with 5-7 credible sources. Use (Author, Year) citations in the text.",
		"",
		"INLINE FIGURE RULES:",
		"- Include at least two inline images inside the body of the chapter.",
		"- Each image MUST use exactly this pattern:",
		"  ![Figure 1](GENERATE: description of the first diagram)",
		"- GENERATE is uppercase and followed by a colon; nothing else goes inside the parentheses.",
		"- Place each figure right after the paragraph it explains.",
		"",
		"STYLE RULES:",
		"- Write in depth, use real numbers, talk directly to the learner.",
		"- Output ONLY valid Markdown. No JSON. No backticks.",
	)
	return strings.Join(lines, "\n")
}
