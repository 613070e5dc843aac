package curriculum

import (
	"fmt"
	"strings"

	"github.com/timmy/coursegen/internal/domain"
)

// BuildLocal synthesizes a curriculum from the request alone. The result is
// deterministic and always passes Validate.
func BuildLocal(in *domain.GenerationInput) *domain.GenerationResult {
	subject := strings.TrimSpace(in.Subject)
	passion := strings.TrimSpace(in.Passion)
	likes := in.PromptLikes()

	likeHint := ""
	if len(likes) > 0 {
		n := len(likes)
		if n > 2 {
			n = 2
		}
		likeHint = " (" + strings.Join(likes[:n], ", ") + ")"
	}

	weeks := make([]domain.WeekItem, 0, domain.WeeksPerCurriculum)
	for w := 1; w <= domain.WeeksPerCurriculum; w++ {
		weeks = append(weeks, domain.WeekItem{
			Week:  w,
			Title: fmt.Sprintf("%s × %s: Week %d", subject, passion, w),
			Goals: []string{
				fmt.Sprintf("Advance %s skills with a %s-themed activity", subject, passion),
				fmt.Sprintf("Practice key problem types for Week %d", w),
				"Connect concepts to real examples" + likeHint,
			},
			Topics:     []string{fmt.Sprintf("%s topic set %d", subject, w), "Applied example using " + passion},
			Activity:   fmt.Sprintf("Hands-on: mini task using %s context (Week %d).", passion, w),
			Assessment: fmt.Sprintf("Exit ticket: three %s questions framed around %s.", subject, passion),
		})
	}

	return &domain.GenerationResult{
		Curriculum:   weeks,
		Week1Chapter: localChapter(in, subject, passion, likes),
	}
}

func localChapter(in *domain.GenerationInput, subject, passion string, likes []string) domain.Chapter {
	intro := fmt.Sprintf("Welcome! This first week introduces core ideas in %s using a %s theme.", subject, passion)
	if len(likes) > 0 {
		intro += " We'll also weave in what you enjoy: " + strings.Join(likes, ", ") + "."
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		intro += " Teacher notes considered: " + notes
	}

	sections := []domain.Section{
		{Heading: "Getting Started", Body: intro},
		{Heading: "Objectives", Body: strings.Join([]string{
			"- Build comfort with key vocabulary and formats.",
			fmt.Sprintf("- See how %s appears in everyday %s contexts.", subject, passion),
			"- Complete a short practice set and a mini project.",
		}, "\n")},
		{Heading: "Mini-project", Body: fmt.Sprintf(
			"Create a simple poster or slide that explains one concept from today using a real %s example.", passion)},
		{Heading: "Exit Ticket and Rubric", Body: "Answer 3 quick questions and write 1 reflection sentence.\n\n" +
			"Rubric (Week 1, 10 pts): Accuracy (4), Clarity (3), Effort (2), Reflection (1)."},
	}

	words := 0
	for _, s := range sections {
		words += CountWords(s.Body)
	}

	return domain.Chapter{
		Title:              fmt.Sprintf("Week 1: %s via %s (%s)", subject, passion, in.AgeRange),
		Abstract:           fmt.Sprintf("An introduction to %s for %s learners, told through %s.", subject, in.AgeRange, passion),
		Sections:           sections,
		CitationsStyle:     "APA",
		AIGenerated:        true,
		EstimatedWordCount: words,
	}
}
