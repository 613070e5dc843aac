// Package curriculum turns a generation request into a validated 16-week
// curriculum and week-1 chapter, refining the backend's answer against a
// depth policy and falling back to local synthesis when the backend fails.
package curriculum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timmy/coursegen/internal/domain"
)

// ExtractJSON pulls the first balanced JSON object out of a model reply.
// Reasoning preambles in <think> tags and markdown code fences are skipped.
func ExtractJSON(content string) (string, error) {
	if end := strings.Index(content, "</think>"); end != -1 {
		content = content[end+len("</think>"):]
	}

	start := strings.Index(content, "{")
	if start == -1 {
		return "", fmt.Errorf("%w: no JSON object in response", domain.ErrSchemaInvalid)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unterminated JSON object in response", domain.ErrSchemaInvalid)
}

// Parse extracts, normalizes and validates a generation result. Sections
// beyond maxSections are dropped. Errors wrap domain.ErrSchemaInvalid.
func Parse(content string, maxSections int) (*domain.GenerationResult, error) {
	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", domain.ErrSchemaInvalid, err)
	}

	if err := normalize(doc); err != nil {
		return nil, err
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	var res domain.GenerationResult
	dec = json.NewDecoder(bytes.NewReader(canonical))
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}

	if maxSections > 0 && len(res.Week1Chapter.Sections) > maxSections {
		res.Week1Chapter.Sections = res.Week1Chapter.Sections[:maxSections]
	}
	SanitizeReferences(&res.Week1Chapter)

	if err := Validate(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
