package viewstore

import (
	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
)

// Store is the union of the per-domain state contracts, served by one backend.
type Store interface {
	view.Store
	chat.StateStore
	summarizer.StateStore
	Close() error
}
