package view

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/sparky-web/pkg/errors"
	"github.com/yanqian/sparky-web/pkg/util"
)

// Service manages page sessions.
type Service interface {
	Open(ctx context.Context) (View, error)
	Touch(ctx context.Context, id string) (View, error)
	Close(ctx context.Context, id string) error
}

type service struct {
	cfg    Config
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService is a wire provider for the view domain.
func NewService(cfg Config, store Store, logger *slog.Logger) Service {
	return &service{
		cfg:    cfg,
		store:  store,
		logger: logger.With("component", "view.service"),
		now:    util.NowUTC,
		newID:  uuid.NewString,
	}
}

func (s *service) Open(ctx context.Context) (View, error) {
	v := View{ID: s.newID(), CreatedAt: s.now()}
	if err := s.store.CreateView(ctx, v, s.cfg.TTL); err != nil {
		return View{}, apperrors.Wrap(apperrors.CodeStore, "create view", err)
	}
	s.logger.Debug("view opened", "view_id", v.ID)
	return v, nil
}

func (s *service) Touch(ctx context.Context, id string) (View, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return View{}, apperrors.Wrap(apperrors.CodeNotFound, "view not found", ErrNotFound)
	}
	v, err := s.store.TouchView(ctx, id, s.cfg.TTL)
	if err != nil {
		return View{}, StoreError("touch view", err)
	}
	return v, nil
}

func (s *service) Close(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if err := s.store.DeleteView(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeStore, "delete view", err)
	}
	s.logger.Debug("view closed", "view_id", id)
	return nil
}

// StoreError maps a store failure onto the shared error codes.
func StoreError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, "view not found", err)
	}
	return apperrors.Wrap(apperrors.CodeStore, op, err)
}
