package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// JobInput is the tagged union of job payloads. The concrete type determines
// the job type.
type JobInput interface {
	JobType() JobType
}

// AgeRanges are the audiences a curriculum can target.
var AgeRanges = []string{"Grades 3–5", "Grades 6–8", "Grades 9–12", "College / Adult"}

// MaxPromptLikes is how many likes are passed on to prompts.
const MaxPromptLikes = 10

// GenerationInput requests a 16-week curriculum and its week-1 chapter.
type GenerationInput struct {
	Subject      string   `json:"subject" validate:"required,max=120"`
	Passion      string   `json:"passion" validate:"required,max=120"`
	AgeRange     string   `json:"ageRange" validate:"required,age_range"`
	Notes        string   `json:"notes,omitempty" validate:"max=2000"`
	PassionLikes []string `json:"passionLikes,omitempty" validate:"max=20,dive,max=40"`
	Debug        bool     `json:"debug,omitempty"`
}

func (*GenerationInput) JobType() JobType { return JobTypeCurriculum }

// PromptLikes returns the non-empty likes, capped at MaxPromptLikes.
func (in *GenerationInput) PromptLikes() []string {
	likes := make([]string, 0, MaxPromptLikes)
	for _, l := range in.PassionLikes {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		likes = append(likes, l)
		if len(likes) == MaxPromptLikes {
			break
		}
	}
	return likes
}

// ExportInput requests one week's chapter rendered into a document.
type ExportInput struct {
	CurriculumID string `json:"curriculumId" validate:"required"`
	Week         int    `json:"week" validate:"min=1,max=16"`
	Format       string `json:"format" validate:"oneof=pdf docx html md"`
	ChapterTitle string `json:"chapterTitle,omitempty" validate:"max=200"`
	Spacious     bool   `json:"spacious,omitempty"`
	DocxRaw      bool   `json:"docxRaw,omitempty"`
	RawPDF       bool   `json:"rawPdf,omitempty"`
	Debug        bool   `json:"debug,omitempty"`
}

func (*ExportInput) JobType() JobType { return JobTypeChapter }

// ApplyDefaults fills week 1, pdf and a "Week N Chapter" title.
func (in *ExportInput) ApplyDefaults() {
	if in.Week == 0 {
		in.Week = 1
	}
	in.Format = strings.ToLower(strings.TrimSpace(in.Format))
	if in.Format == "" {
		in.Format = "pdf"
	}
	in.ChapterTitle = strings.TrimSpace(in.ChapterTitle)
	if in.ChapterTitle == "" {
		in.ChapterTitle = fmt.Sprintf("Week %d Chapter", in.Week)
	}
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("age_range", func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, r := range AgeRanges {
			if r == val {
				return true
			}
		}
		return false
	})
	return v
}

// ValidateInput checks in against its struct rules. The error wraps ErrInputInvalid.
func ValidateInput(in JobInput) error {
	if in == nil || reflect.ValueOf(in).IsNil() {
		return &ValidationError{Message: "missing job input"}
	}
	err := inputValidator.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldError(in, verrs[0])
	}
	return &ValidationError{Message: err.Error()}
}

func fieldError(in JobInput, fe validator.FieldError) *ValidationError {
	if in.JobType() == JobTypeChapter && fe.Field() == "curriculumId" && fe.Tag() == "required" {
		return &ValidationError{Message: "missing curriculumId on chapter job"}
	}
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		msg = "must be at most " + fe.Param()
	case "min":
		msg = "must be at least " + fe.Param()
	case "oneof":
		msg = "must be one of " + fe.Param()
	case "age_range":
		msg = "must be one of " + strings.Join(AgeRanges, ", ")
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// DecodeInput parses a stored payload for a job type, applies defaults and
// validates it.
func DecodeInput(t JobType, raw string) (JobInput, error) {
	var in JobInput
	switch t {
	case JobTypeCurriculum:
		in = &GenerationInput{}
	case JobTypeChapter:
		in = &ExportInput{}
	default:
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown job type %q", t)}
	}
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), in); err != nil {
		return nil, &ValidationError{Field: "input", Message: "malformed payload: " + err.Error()}
	}
	if ex, ok := in.(*ExportInput); ok {
		ex.ApplyDefaults()
	}
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	return in, nil
}

// EncodeInput serializes in for storage.
func EncodeInput(in JobInput) (string, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode job input: %w", err)
	}
	return string(b), nil
}
