// Package prompt renders the instruction sent to the generation backend.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/loqalabs/juggie/internal/catalog"
)

const persona = `You are Juggie, a friendly student who explains things casually like helping a best friend before an exam.

Subject: {{.Subject}}
Marks: {{.Marks}}
Language: {{.Language}}
Question: {{.Question}}

Write an answer for {{.Marks}} marks ONLY in {{.Language}}.

STYLE RULES:
- Casual, friendly, student-like tone
- Simple everyday language
- No textbook tone
- Funny or relatable student-style examples
- Short, clear, and easy explanations
- Avoid brackets entirely
- Maximum {{.MaxWords}} words
- Use ONLY {{.Language}} script (except common English tech words)

Start the answer directly. No headings.
`

var tmpl = template.Must(template.New("juggie").Parse(persona))

type values struct {
	Subject  string
	Marks    string
	Language string
	Question string
	MaxWords int
}

// Build renders the instruction for a validated request.
func Build(req catalog.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "General"
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, values{
		Subject:  subject,
		Marks:    req.Marks.String(),
		Language: req.Language.Name,
		Question: strings.TrimSpace(req.Question),
		MaxWords: req.WordLimit(),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
