package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeInput_Generation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name: "valid",
			raw:  `{"subject":"Algebra I","passion":"Soccer","ageRange":"Grades 6–8"}`,
		},
		{
			name:    "missing subject",
			raw:     `{"passion":"Soccer","ageRange":"Grades 6–8"}`,
			wantErr: "subject: is required",
		},
		{
			name:    "unknown age range",
			raw:     `{"subject":"Algebra I","passion":"Soccer","ageRange":"Toddlers"}`,
			wantErr: "ageRange: must be one of",
		},
		{
			name:    "subject too long",
			raw:     `{"subject":"` + strings.Repeat("a", 121) + `","passion":"Soccer","ageRange":"Grades 6–8"}`,
			wantErr: "subject: must be at most 120",
		},
		{
			name:    "like too long",
			raw:     `{"subject":"Algebra I","passion":"Soccer","ageRange":"Grades 6–8","passionLikes":["` + strings.Repeat("x", 41) + `"]}`,
			wantErr: "must be at most 40",
		},
		{
			name:    "malformed",
			raw:     `{"subject":`,
			wantErr: "malformed payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput(JobTypeCurriculum, tt.raw)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, ok := in.(*GenerationInput); !ok {
					t.Fatalf("expected *GenerationInput, got %T", in)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrInputInvalid) {
				t.Errorf("error %v does not wrap ErrInputInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDecodeInput_ExportDefaults(t *testing.T) {
	in, err := DecodeInput(JobTypeChapter, `{"curriculumId":"c-1"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex := in.(*ExportInput)
	if ex.Week != 1 {
		t.Errorf("Week = %d, want 1", ex.Week)
	}
	if ex.Format != "pdf" {
		t.Errorf("Format = %q, want pdf", ex.Format)
	}
	if ex.ChapterTitle != "Week 1 Chapter" {
		t.Errorf("ChapterTitle = %q, want %q", ex.ChapterTitle, "Week 1 Chapter")
	}
}

func TestDecodeInput_ExportMissingCurriculum(t *testing.T) {
	_, err := DecodeInput(JobTypeChapter, `{"week":3,"format":"docx"}`)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "missing curriculumId on chapter job" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestDecodeInput_UnknownType(t *testing.T) {
	_, err := DecodeInput(JobType("reportJob"), `{}`)
	if !errors.Is(err, ErrInputInvalid) {
		t.Errorf("expected ErrInputInvalid, got %v", err)
	}
}

func TestPromptLikes(t *testing.T) {
	in := &GenerationInput{}
	for i := 0; i < 15; i++ {
		in.PassionLikes = append(in.PassionLikes, " like ")
	}
	in.PassionLikes[0] = "  "

	likes := in.PromptLikes()
	if len(likes) != MaxPromptLikes {
		t.Fatalf("len = %d, want %d", len(likes), MaxPromptLikes)
	}
	if likes[0] != "like" {
		t.Errorf("likes[0] = %q, want trimmed value", likes[0])
	}
}

func TestTruncateError(t *testing.T) {
	long := strings.Repeat("é", 600)
	got := TruncateError(long)
	if n := len([]rune(got)); n != MaxErrorMessageLen {
		t.Errorf("rune length = %d, want %d", n, MaxErrorMessageLen)
	}
	if TruncateError("short") != "short" {
		t.Error("short message changed")
	}
}
