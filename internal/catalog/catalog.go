// Package catalog holds the static lookup tables behind a study question:
// supported output languages with their voices and translation codes, and
// the marks value that bounds the answer length.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyQuestion       = errors.New("please enter a question")
	ErrUnsupportedMarks    = errors.New("unsupported marks value")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Marks is the exam weight of a question.
type Marks int

var wordLimits = map[Marks]int{
	1: 50,
	2: 100,
	3: 150,
	5: 400,
	8: 2500,
}

// MarksOptions lists the accepted marks values in ascending order.
func MarksOptions() []Marks {
	return []Marks{1, 2, 3, 5, 8}
}

// ParseMarks accepts the textual marks value submitted by a form.
func ParseMarks(value string) (Marks, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMarks, value)
	}
	m := Marks(n)
	if _, ok := wordLimits[m]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMarks, value)
	}
	return m, nil
}

// WordLimit returns the maximum answer length in words, or 0 for an unknown value.
func (m Marks) WordLimit() int {
	return wordLimits[m]
}

func (m Marks) String() string {
	return strconv.Itoa(int(m))
}

// Language is a supported output language.
type Language struct {
	Name string
	// Code is the translation target; empty means answers are not translated.
	Code  string
	voice string
}

// Voice returns the dedicated synthesis voice, or "" to use the configured default.
func (l Language) Voice() string {
	return l.voice
}

// TranslationCode returns the translation target and whether one exists.
func (l Language) TranslationCode() (string, bool) {
	return l.Code, l.Code != ""
}

var languages = []Language{
	{Name: "English", voice: "en-IN-eashwar"},
	{Name: "Tamil", Code: "ta", voice: "ta-IN-iniya"},
	{Name: "Hindi", Code: "hi", voice: "hi-IN-priya"},
	{Name: "Bengali", Code: "bn", voice: "bn-IN-anika"},
	{Name: "Spanish", Code: "es", voice: "es-ES-javier"},
	{Name: "French", Code: "fr", voice: "fr-FR-thomas"},
	{Name: "German", Code: "de", voice: "de-DE-lukas"},
	{Name: "Italian", Code: "it", voice: "it-IT-luca"},
	{Name: "Dutch", Code: "nl", voice: "nl-NL-max"},
	{Name: "Portuguese", Code: "pt", voice: "pt-BR-gabriel"},
	{Name: "Chinese", Code: "zh-CN", voice: "zh-CN-xiaoyan"},
	{Name: "Japanese", Code: "ja", voice: "ja-JP-haruka"},
	{Name: "Korean", Code: "ko", voice: "ko-KR-minseo"},
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	return append([]Language(nil), languages...)
}

// LookupLanguage finds a language by display name, case-insensitively.
func LookupLanguage(name string) (Language, bool) {
	name = strings.TrimSpace(name)
	for _, l := range languages {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return Language{}, false
}
