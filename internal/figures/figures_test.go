package figures

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/timmy/coursegen/internal/service"
)

type fakeImages struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeImages) Generate(ctx context.Context, description string) (string, error) {
	f.calls = append(f.calls, description)
	if f.fail[description] {
		return "", errors.New("content policy")
	}
	return fmt.Sprintf("https://img.example.com/%d.png", len(f.calls)), nil
}

type fakeWorks struct {
	works map[string][]service.Work
	err   error
}

func (f *fakeWorks) SearchWorks(ctx context.Context, author string, rows int) ([]service.Work, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.works[author], nil
}

var imageRefRe = regexp.MustCompile(`!\[[^\]]*\]\(https://img\.example\.com/\d+\.png\)`)

func TestResolve_PlaceholderCounts(t *testing.T) {
	tests := []struct {
		name          string
		md            string
		wantImages    int
		wantCalls     int
		wantFallbacks int
		wantFigures   bool
	}{
		{
			name:        "no placeholders",
			md:          "# Chapter\n\nText.",
			wantImages:  2,
			wantCalls:   2,
			wantFigures: true,
		},
		{
			name:        "one placeholder",
			md:          "# Chapter\n\n![Figure 1](GENERATE: a bicycle gear diagram)\n",
			wantImages:  2,
			wantCalls:   2,
			wantFigures: true,
		},
		{
			name: "three placeholders over the cap",
			md: "![A](GENERATE: one)\n![B](generate : two)\n![C](GENERATE: three)\n" +
				"![A again](GENERATE: one)\n",
			wantImages:    3, // "one" twice plus "two"
			wantCalls:     2,
			wantFallbacks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := &fakeImages{}
			r := NewResolver(images, nil, Config{MaxImages: 2, MinFigures: 2})

			out, report := r.Resolve(context.Background(), tt.md)

			if got := len(imageRefRe.FindAllString(out, -1)); got != tt.wantImages {
				t.Errorf("image substitutions = %d, want %d\n%s", got, tt.wantImages, out)
			}
			if len(images.calls) != tt.wantCalls {
				t.Errorf("image calls = %d, want %d", len(images.calls), tt.wantCalls)
			}
			if got := strings.Count(out, "*Figure: "); got != tt.wantFallbacks {
				t.Errorf("fallback notes = %d, want %d", got, tt.wantFallbacks)
			}
			if placeholderRe.MatchString(out) {
				t.Errorf("placeholder left behind:\n%s", out)
			}
			if strings.Contains(out, "## Figures") != tt.wantFigures {
				t.Errorf("figures heading present = %v, want %v", !tt.wantFigures, tt.wantFigures)
			}
			if report.Generated != tt.wantCalls {
				t.Errorf("report.Generated = %d", report.Generated)
			}
		})
	}
}

func TestResolve_FailedImageKeepsDescription(t *testing.T) {
	images := &fakeImages{fail: map[string]bool{"a broken chart": true}}
	r := NewResolver(images, nil, Config{MaxImages: 2, MinFigures: 2})

	out, report := r.Resolve(context.Background(),
		"![Fig](GENERATE: a broken chart)\n\n![Fig 2](GENERATE: a working map)\n")
	if !strings.Contains(out, "*Figure: a broken chart*") {
		t.Errorf("missing fallback text:\n%s", out)
	}
	if report.Failed != 1 || report.Generated != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestEnsureReferences(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want bool // default appended
	}{
		{"missing", "# Title\n\nBody", true},
		{"heading", "# Title\n\n## References\n- A", false},
		{"lowercase heading", "### references\n- A", false},
		{"label", "References:\n- A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EnsureReferences(tt.md)
			if got := strings.Contains(out, "No specific external sources"); got != tt.want {
				t.Errorf("default appended = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindCitations(t *testing.T) {
	md := "As shown (Piaget, 1952) and (Vygotsky, 1978), again (Piaget, 1952). " +
		"Ignored: (piaget, 1952), (Smith, 1850), (O’Neil, 2021)."
	got := FindCitations(md)
	want := []Citation{{"Piaget", 1952}, {"Vygotsky", 1978}, {"O’Neil", 2021}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("FindCitations = %v, want %v", got, want)
	}
}

func TestResolve_CitationVerification(t *testing.T) {
	works := &fakeWorks{works: map[string][]service.Work{
		"Piaget":   {{DOI: "10.1/a", Title: "Origins", Years: []int{1953}}},
		"Vygotsky": {{DOI: "10.1/b", Title: "Mind", Years: []int{1990}}},
	}}
	r := NewResolver(&fakeImages{}, works, Config{MaxImages: 2, MinFigures: 2})

	out, report := r.Resolve(context.Background(), "Text (Piaget, 1952) and (Vygotsky, 1978).\n\n## References\n- x")
	if len(report.Citations) != 2 {
		t.Fatalf("citations = %+v", report.Citations)
	}
	if !report.Citations[0].Confirmed || report.Citations[0].DOI != "10.1/a" {
		t.Errorf("Piaget check = %+v, want confirmed within one year", report.Citations[0])
	}
	if report.Citations[1].Confirmed {
		t.Errorf("Vygotsky check = %+v, want unconfirmed", report.Citations[1])
	}
	if !strings.Contains(out, "## Reference Verification") ||
		!strings.Contains(out, "Confirmed: (Piaget, 1952) DOI: 10.1/a") ||
		!strings.Contains(out, "Unconfirmed: (Vygotsky, 1978)") {
		t.Errorf("report section missing:\n%s", out)
	}
}

func TestResolve_LookupErrorsNeverBlock(t *testing.T) {
	r := NewResolver(&fakeImages{}, &fakeWorks{err: errors.New("timeout")}, Config{MaxImages: 2})
	out, report := r.Resolve(context.Background(), "Cited (Dewey, 1938).")
	if len(report.Citations) != 1 || report.Citations[0].Confirmed {
		t.Errorf("citations = %+v", report.Citations)
	}
	if !strings.Contains(out, "Unconfirmed: (Dewey, 1938)") {
		t.Errorf("output:\n%s", out)
	}
}
