package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yanqian/sparky-web/internal/domain/view"
)

// Service drives the chat widget of a view.
type Service interface {
	Submit(ctx context.Context, viewID, text string) (State, error)
	State(ctx context.Context, viewID string) (State, error)
}

// Client reaches the external chat endpoint.
type Client interface {
	Chat(ctx context.Context, req Request) (Reply, error)
}

// StateStore holds the chat widget state of every open view.
// AppendMessage must preserve insertion order.
type StateStore interface {
	AppendMessage(ctx context.Context, viewID string, msg Message) error
	SetChatInput(ctx context.Context, viewID, input string) error
	SetChatLoading(ctx context.Context, viewID string, loading bool) error
	ChatState(ctx context.Context, viewID string) (State, error)
}

type service struct {
	cfg    Config
	client Client
	store  StateStore
	logger *slog.Logger
}

// NewService is a wire provider for the chat domain.
func NewService(cfg Config, client Client, store StateStore, logger *slog.Logger) Service {
	if strings.TrimSpace(cfg.SessionID) == "" {
		cfg.SessionID = DefaultSessionID
	}
	return &service{cfg: cfg, client: client, store: store, logger: logger.With("component", "chat.service")}
}

func (s *service) State(ctx context.Context, viewID string) (State, error) {
	state, err := s.store.ChatState(ctx, viewID)
	if err != nil {
		return State{}, view.StoreError("load chat state", err)
	}
	return state, nil
}

// Submit appends the user's turn, asks the external service for a reply and
// appends it when present. Failures of the external call are logged and
// leave only the user's turn behind.
func (s *service) Submit(ctx context.Context, viewID, text string) (State, error) {
	if strings.TrimSpace(text) == "" {
		return s.State(ctx, viewID)
	}

	if err := s.store.SetChatInput(ctx, viewID, text); err != nil {
		return State{}, view.StoreError("set chat input", err)
	}
	if err := s.store.AppendMessage(ctx, viewID, Message{Role: RoleUser, Content: text}); err != nil {
		return State{}, view.StoreError("append user message", err)
	}
	if err := s.store.SetChatLoading(ctx, viewID, true); err != nil {
		return State{}, view.StoreError("set chat loading", err)
	}

	// The call settles even if the caller goes away.
	settleCtx := context.WithoutCancel(ctx)
	reply, err := s.client.Chat(settleCtx, Request{Message: text, ChatID: s.cfg.SessionID})
	switch {
	case err != nil:
		s.logger.Warn("chat request failed", "view_id", viewID, "error", err)
	case reply.Response != "":
		s.write(settleCtx, viewID, "append assistant message", func(ctx context.Context) error {
			return s.store.AppendMessage(ctx, viewID, Message{Role: RoleAssistant, Content: reply.Response})
		})
	default:
		s.logger.Info("chat reply without response", "view_id", viewID, "upstream_error", reply.Error)
	}

	s.write(settleCtx, viewID, "clear chat loading", func(ctx context.Context) error {
		return s.store.SetChatLoading(ctx, viewID, false)
	})
	s.write(settleCtx, viewID, "clear chat input", func(ctx context.Context) error {
		return s.store.SetChatInput(ctx, viewID, "")
	})

	return s.State(settleCtx, viewID)
}

// write applies a post-settlement mutation. A view closed while the call was in
// flight is no longer mounted, so its writes are dropped.
func (s *service) write(ctx context.Context, viewID, op string, fn func(context.Context) error) {
	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, view.ErrNotFound):
		s.logger.Debug("view gone before chat settled", "view_id", viewID, "op", op)
	default:
		s.logger.Error("chat state update failed", "view_id", viewID, "op", op, "error", err)
	}
}
