package curriculum

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timmy/coursegen/internal/domain"
)

// ChapterMarkdown renders a chapter as markdown.
func ChapterMarkdown(ch *domain.Chapter) string {
	var b strings.Builder

	title := ch.Title
	if title == "" {
		title = "Week 1"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if ch.Abstract != "" {
		fmt.Fprintf(&b, "*%s*\n\n", ch.Abstract)
	}

	for _, s := range ch.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Heading, strings.TrimSpace(s.Body))
	}

	if len(ch.Figures) > 0 {
		b.WriteString("## Suggested Figures\n\n")
		for i, f := range ch.Figures {
			label := f.Label
			if label == "" {
				label = fmt.Sprintf("Figure %d", i+1)
			}
			fmt.Fprintf(&b, "- **%s.** %s", label, f.Caption)
			if f.SuggestedVisual != "" {
				fmt.Fprintf(&b, " (%s)", f.SuggestedVisual)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## References\n\n")
	if len(ch.References) == 0 {
		b.WriteString(NoSourcesNote + "\n")
	}
	for _, r := range ch.References {
		b.WriteString("- " + formatReference(r) + "\n")
	}
	return b.String()
}

// NoSourcesNote stands in for a reference list when none was produced.
const NoSourcesNote = "This chapter was generated by an AI content system using general educational knowledge. " +
	"No specific external sources were cited in this draft."

func formatReference(r domain.Reference) string {
	var parts []string
	if r.Author != "" {
		parts = append(parts, r.Author)
	}
	if r.Year != "" {
		parts = append(parts, "("+r.Year+")")
	}
	parts = append(parts, "*"+r.Title+"*")
	if r.Publisher != "" {
		parts = append(parts, r.Publisher)
	}
	if r.URL != "" && r.URL != r.Title {
		parts = append(parts, r.URL)
	}
	return strings.Join(parts, ". ")
}

// CurriculumJSON renders the 16 weeks as indented JSON.
func CurriculumJSON(weeks []domain.WeekItem) ([]byte, error) {
	b, err := json.MarshalIndent(weeks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode curriculum: %w", err)
	}
	return b, nil
}

// Summary joins the curriculum JSON and chapter markdown into one text file.
func Summary(curriculumJSON []byte, chapterMD string) string {
	return "Curriculum:\n" + string(curriculumJSON) + "\n\n---\n\nChapter:\n" + chapterMD
}
