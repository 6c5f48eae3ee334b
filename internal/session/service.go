package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/juggie/internal/bus"
	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/protocol"
)

// Service answers questions submitted over the bus with request/reply.
type Service struct {
	orch    *Orchestrator
	bus     *bus.Client
	timeout time.Duration
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewService(parent context.Context, orch *Orchestrator, busClient *bus.Client, timeout time.Duration, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		orch:    orch,
		bus:     busClient,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(slog.String("component", "answer-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().QueueSubscribe(protocol.SubjectAnswerRequest, protocol.QueueAnswer, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe answer requests: %w", err)
	}
	s.sub = sub
	return nil
}

// Close stops accepting requests and waits for running sessions.
func (s *Service) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	if msg.Reply == "" {
		s.logger.Warn("answer request without reply subject")
		return
	}
	var in protocol.AnswerRequest
	if err := protocol.Decode(msg.Data, &in); err != nil {
		s.reply(msg, protocol.ErrorResponse{Error: "invalid answer request"})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		req, err := catalog.NewRequest(in.Question, in.Subject, strconv.Itoa(in.Marks), in.Language)
		if err != nil {
			s.reply(msg, protocol.ErrorResponse{Error: err.Error()})
			return
		}
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		res, err := s.orch.Run(ctx, req, WithClientSessionID(in.SessionID))
		if err != nil {
			s.reply(msg, protocol.ErrorResponse{Error: err.Error()})
			return
		}
		s.reply(msg, res.Response())
		s.logger.Info("answer delivered", slog.String("session_id", res.SessionID), slog.Duration("latency", time.Since(start)))
	}()
}

func (s *Service) reply(msg *nats.Msg, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		s.logger.Warn("failed to encode answer reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send answer reply", slogError(err))
	}
}
