package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
	"github.com/yanqian/sparky-web/internal/infra/config"
	"github.com/yanqian/sparky-web/internal/infra/upstream"
	"github.com/yanqian/sparky-web/internal/infra/viewstore"
	"github.com/yanqian/sparky-web/pkg/metrics"
)

func provideViewConfig(cfg *config.Config) view.Config {
	return view.Config{TTL: cfg.View.TTL}
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{SessionID: cfg.Chat.SessionID}
}

func provideMetricsRegistry() *metrics.Registry {
	return metrics.NewRegistry()
}

func provideUpstreamClient(cfg *config.Config, registry *metrics.Registry) *upstream.Client {
	return upstream.NewClient(upstream.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		ChatPath:    cfg.Upstream.ChatPath,
		SummaryPath: cfg.Upstream.SummaryPath,
		Timeout:     cfg.Upstream.Timeout,
	}, registry)
}

func provideViewStore(cfg *config.Config, logger *slog.Logger) viewstore.Store {
	fallback := func() viewstore.Store {
		return viewstore.NewMemoryStore(viewstore.WithMaxViews(cfg.View.MaxViews))
	}
	if cfg.View.Redis.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return fallback()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return fallback()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
			client.Close()
		} else {
			logger.Info("view valkey store enabled", "addr", cfg.View.Redis.Addr)
			return viewstore.NewValkeyStore(client, cfg.View.Redis.Prefix)
		}
	}
	return fallback()
}

func provideViewRecords(store viewstore.Store) view.Store {
	return store
}

func provideChatStateStore(store viewstore.Store) chat.StateStore {
	return store
}

func provideSummaryStateStore(store viewstore.Store) summarizer.StateStore {
	return store
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.View.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.View.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.View.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
