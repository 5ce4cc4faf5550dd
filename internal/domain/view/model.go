package view

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a view id is unknown or expired.
var ErrNotFound = errors.New("view not found")

// Config controls page-session lifetime.
type Config struct {
	TTL time.Duration
}

// View is one rendering of the chat page. Widget state is keyed by its ID.
type View struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists view records.
type Store interface {
	CreateView(ctx context.Context, v View, ttl time.Duration) error
	TouchView(ctx context.Context, id string, ttl time.Duration) (View, error)
	DeleteView(ctx context.Context, id string) error
}
