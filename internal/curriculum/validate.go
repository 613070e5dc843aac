package curriculum

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/timmy/coursegen/internal/domain"
)

var schemaValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate checks the result against the schema and requires the week
// numbers to be exactly 1..16. Errors wrap domain.ErrSchemaInvalid.
func Validate(res *domain.GenerationResult) error {
	if err := schemaValidator.Struct(res); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s %s", domain.ErrSchemaInvalid, fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}

	seen := make(map[int]bool, domain.WeeksPerCurriculum)
	for _, w := range res.Curriculum {
		if seen[w.Week] {
			return fmt.Errorf("%w: week %d appears more than once", domain.ErrSchemaInvalid, w.Week)
		}
		seen[w.Week] = true
	}
	for n := 1; n <= domain.WeeksPerCurriculum; n++ {
		if !seen[n] {
			return fmt.Errorf("%w: week %d is missing", domain.ErrSchemaInvalid, n)
		}
	}
	return nil
}

// SanitizeReferences strips URLs that are not absolute http(s) and drops
// entries left with neither title nor URL. When every reference is dropped
// the chapter is flagged as AI-generated.
func SanitizeReferences(ch *domain.Chapter) {
	if len(ch.References) == 0 {
		return
	}

	kept := ch.References[:0]
	for _, ref := range ch.References {
		ref.Title = strings.TrimSpace(ref.Title)
		if !isHTTPURL(ref.URL) {
			ref.URL = ""
		}
		if ref.Title == "" && ref.URL == "" {
			continue
		}
		if ref.Title == "" {
			ref.Title = ref.URL
		}
		kept = append(kept, ref)
	}

	if len(kept) == 0 {
		ch.References = nil
		ch.AIGenerated = true
		return
	}
	ch.References = kept
}

func isHTTPURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
