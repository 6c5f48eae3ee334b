package translate

import "context"

type mockTranslator struct {
	fn func(text, target string) (string, error)
}

// NewMockTranslator wraps fn as a Translator. A nil fn returns text unchanged.
func NewMockTranslator(fn func(text, target string) (string, error)) Translator {
	return &mockTranslator{fn: fn}
}

func (m *mockTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.fn == nil {
		return text, nil
	}
	return m.fn(text, target)
}
