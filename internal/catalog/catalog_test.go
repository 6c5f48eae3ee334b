package catalog

import (
	"errors"
	"testing"
)

func TestWordLimits(t *testing.T) {
	cases := map[string]int{"1": 50, "2": 100, "3": 150, "5": 400, "8": 2500}
	for raw, want := range cases {
		m, err := ParseMarks(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got := m.WordLimit(); got != want {
			t.Fatalf("marks %s: expected %d words, got %d", raw, want, got)
		}
	}
}

func TestParseMarksRejects(t *testing.T) {
	for _, raw := range []string{"", "4", "ten", "-1"} {
		if _, err := ParseMarks(raw); !errors.Is(err, ErrUnsupportedMarks) {
			t.Fatalf("expected ErrUnsupportedMarks for %q, got %v", raw, err)
		}
	}
}

func TestLanguageTables(t *testing.T) {
	if len(Languages()) != 13 {
		t.Fatalf("expected 13 languages, got %d", len(Languages()))
	}
	en, ok := LookupLanguage("english")
	if !ok {
		t.Fatal("expected English to be supported")
	}
	if _, translated := en.TranslationCode(); translated {
		t.Fatal("English must not be translated")
	}
	zh, _ := LookupLanguage("Chinese")
	if code, _ := zh.TranslationCode(); code != "zh-CN" {
		t.Fatalf("unexpected chinese code %q", code)
	}
	if zh.Voice() != "zh-CN-xiaoyan" {
		t.Fatalf("unexpected chinese voice %q", zh.Voice())
	}
	if v := (Language{Name: "Klingon"}).Voice(); v != "" {
		t.Fatalf("expected no dedicated voice, got %q", v)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("  What is gravity? ", "Science", "1", "English")
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if req.Question != "What is gravity?" || req.WordLimit() != 50 {
		t.Fatalf("unexpected request %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, err := NewRequest("   ", "Science", "1", "English"); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if _, err := NewRequest("q", "", "1", "Klingon"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if (Request{Question: "q", Marks: 4, Language: Language{Name: "English"}}).Validate() == nil {
		t.Fatal("expected marks validation error")
	}
}
