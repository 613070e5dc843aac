package domain

import "time"

// WeeksPerCurriculum is the fixed curriculum length.
const WeeksPerCurriculum = 16

// WeekItem is one week of a curriculum.
type WeekItem struct {
	Week       int      `json:"week" validate:"min=1,max=16"`
	Title      string   `json:"title" validate:"required"`
	Goals      []string `json:"goals" validate:"min=1,dive,required"`
	Topics     []string `json:"topics" validate:"min=1,dive,required"`
	Activity   string   `json:"activity" validate:"required"`
	Assessment string   `json:"assessment" validate:"required"`
}

// Section is one heading/body pair of a chapter.
type Section struct {
	Heading string `json:"heading" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// Figure is a suggested visual for a chapter.
type Figure struct {
	Label           string `json:"label"`
	Caption         string `json:"caption"`
	SuggestedVisual string `json:"suggested_visual"`
}

// Reference is one bibliography entry.
type Reference struct {
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=web book article report"`
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author,omitempty"`
	Year      string `json:"year,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Chapter is the long-form week-1 chapter.
type Chapter struct {
	Title              string      `json:"title" validate:"required"`
	Abstract           string      `json:"abstract" validate:"required"`
	Sections           []Section   `json:"sections" validate:"min=1,dive"`
	Figures            []Figure    `json:"figures"`
	References         []Reference `json:"references" validate:"dive"`
	CitationsStyle     string      `json:"citations_style" validate:"oneof=APA MLA"`
	IntextCitations    bool        `json:"intext_citations"`
	AIGenerated        bool        `json:"ai_generated"`
	EstimatedWordCount int         `json:"estimated_word_count"`
}

// GenerationResult is the output of a curriculum generation job.
type GenerationResult struct {
	Curriculum   []WeekItem `json:"curriculum16" validate:"len=16,dive"`
	Week1Chapter Chapter    `json:"week1Chapter"`
}

// CurriculumRecord is the stored result of a generation job. Chapter export
// jobs reference it by CurriculumID.
type CurriculumRecord struct {
	OwnerID       string     `json:"ownerId"`
	CurriculumID  string     `json:"curriculumId"`
	JobID         string     `json:"jobId"`
	Subject       string     `json:"subject"`
	Passion       string     `json:"passion"`
	AgeRange      string     `json:"ageRange"`
	Notes         string     `json:"notes,omitempty"`
	Likes         []string   `json:"likes,omitempty"`
	Weeks         []WeekItem `json:"weeks"`
	CurriculumKey string     `json:"curriculumKey"`
	ChapterKey    string     `json:"chapterKey"`
	SummaryKey    string     `json:"summaryKey"`
	Fallback      bool       `json:"fallback"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// WithDefaults fills the subject, passion and age range used when a record was
// stored without them.
func (r CurriculumRecord) WithDefaults() CurriculumRecord {
	if r.Subject == "" {
		r.Subject = "General Studies"
	}
	if r.Passion == "" {
		r.Passion = "Learning"
	}
	if r.AgeRange == "" {
		r.AgeRange = "College / Adult"
	}
	return r
}

// Week returns the week item numbered n, if present.
func (r *CurriculumRecord) Week(n int) (WeekItem, bool) {
	for _, w := range r.Weeks {
		if w.Week == n {
			return w, true
		}
	}
	return WeekItem{}, false
}
