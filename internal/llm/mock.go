package llm

import (
	"context"
	"time"
)

const defaultMockAnswer = "Okay so think of it like this. You already know more than you think, " +
	"so just picture explaining it to your best friend the night before the exam. " +
	"Keep the main idea, add one silly example, and you are done."

type mockGenerator struct {
	answer string
	delay  time.Duration
}

// NewMockGenerator returns a generator that always answers with the given text.
func NewMockGenerator(answer string) Generator {
	if answer == "" {
		answer = defaultMockAnswer
	}
	return &mockGenerator{answer: answer, delay: 20 * time.Millisecond}
}

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
	}
	return consumer(Chunk{
		SessionID: req.SessionID,
		Content:   m.answer,
		Partial:   false,
		Latency:   m.delay,
	})
}
