package catalog

import (
	"fmt"
	"strings"
)

// Request is one submitted study question. It is treated as immutable once validated.
type Request struct {
	Question string
	Subject  string
	Marks    Marks
	Language Language
}

// NewRequest parses raw form values into a validated Request.
func NewRequest(question, subject, marks, language string) (Request, error) {
	req := Request{
		Question: strings.TrimSpace(question),
		Subject:  strings.TrimSpace(subject),
	}
	if req.Question == "" {
		return req, ErrEmptyQuestion
	}
	m, err := ParseMarks(marks)
	if err != nil {
		return req, err
	}
	req.Marks = m
	if strings.TrimSpace(language) == "" {
		language = "English"
	}
	lang, ok := LookupLanguage(language)
	if !ok {
		return req, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	req.Language = lang
	return req, nil
}

// Validate reports whether the request can be answered.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if r.Marks.WordLimit() == 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedMarks, int(r.Marks))
	}
	if _, ok := LookupLanguage(r.Language.Name); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, r.Language.Name)
	}
	return nil
}

// WordLimit is the maximum number of words in the final answer.
func (r Request) WordLimit() int {
	return r.Marks.WordLimit()
}
