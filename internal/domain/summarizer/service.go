package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yanqian/sparky-web/internal/domain/view"
)

// Service drives the video summarizer widget of a view.
type Service interface {
	Submit(ctx context.Context, viewID, url string) (State, error)
	State(ctx context.Context, viewID string) (State, error)
}

// Client reaches the external summarization endpoint.
type Client interface {
	ProcessYouTube(ctx context.Context, req Request) (Reply, error)
}

// StateStore holds the summarizer widget state of every open view.
type StateStore interface {
	SetSummaryInput(ctx context.Context, viewID, input string) error
	SetSummaryResult(ctx context.Context, viewID, result string) error
	SetSummaryLoading(ctx context.Context, viewID string, loading bool) error
	SummaryState(ctx context.Context, viewID string) (State, error)
}

type service struct {
	client Client
	store  StateStore
	logger *slog.Logger
}

// NewService is a wire provider for the summarizer domain.
func NewService(client Client, store StateStore, logger *slog.Logger) Service {
	return &service{client: client, store: store, logger: logger.With("component", "summarizer.service")}
}

func (s *service) State(ctx context.Context, viewID string) (State, error) {
	state, err := s.store.SummaryState(ctx, viewID)
	if err != nil {
		return State{}, view.StoreError("load summary state", err)
	}
	return state, nil
}

// Submit forwards url as-is and overwrites the result slot with the outcome.
func (s *service) Submit(ctx context.Context, viewID, url string) (State, error) {
	if strings.TrimSpace(url) == "" {
		return s.State(ctx, viewID)
	}

	if err := s.store.SetSummaryInput(ctx, viewID, url); err != nil {
		return State{}, view.StoreError("set summary input", err)
	}
	if err := s.store.SetSummaryResult(ctx, viewID, ""); err != nil {
		return State{}, view.StoreError("clear summary result", err)
	}
	if err := s.store.SetSummaryLoading(ctx, viewID, true); err != nil {
		return State{}, view.StoreError("set summary loading", err)
	}

	settleCtx := context.WithoutCancel(ctx)
	reply, err := s.client.ProcessYouTube(settleCtx, Request{URL: url})
	result, ok := resultFor(reply, err)
	if err != nil {
		s.logger.Warn("summary request failed", "view_id", viewID, "error", err)
	}
	if ok {
		s.write(settleCtx, viewID, "set summary result", func(ctx context.Context) error {
			return s.store.SetSummaryResult(ctx, viewID, result)
		})
	}
	s.write(settleCtx, viewID, "clear summary loading", func(ctx context.Context) error {
		return s.store.SetSummaryLoading(ctx, viewID, false)
	})

	return s.State(settleCtx, viewID)
}

// resultFor maps a settled call onto the text shown to the user. ok is false
// when the reply carries neither a summary nor an error.
func resultFor(reply Reply, err error) (string, bool) {
	switch {
	case err != nil:
		return GenericFailed, true
	case reply.Summary != "":
		return reply.Summary, true
	case reply.Error != "":
		return ErrorPrefix + reply.Error, true
	default:
		return "", false
	}
}

func (s *service) write(ctx context.Context, viewID, op string, fn func(context.Context) error) {
	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, view.ErrNotFound):
		s.logger.Debug("view gone before summary settled", "view_id", viewID, "op", op)
	default:
		s.logger.Error("summary state update failed", "view_id", viewID, "op", op, "error", err)
	}
}
