//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/sparky-web/internal/bootstrap"
	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
	"github.com/yanqian/sparky-web/internal/infra/config"
	"github.com/yanqian/sparky-web/internal/infra/upstream"
	httpiface "github.com/yanqian/sparky-web/internal/interface/http"
	"github.com/yanqian/sparky-web/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideViewConfig,
		provideChatConfig,
		provideMetricsRegistry,
		provideUpstreamClient,
		provideViewStore,
		provideViewRecords,
		provideChatStateStore,
		provideSummaryStateStore,
		view.NewService,
		chat.NewService,
		summarizer.NewService,
		wire.Bind(new(chat.Client), new(*upstream.Client)),
		wire.Bind(new(summarizer.Client), new(*upstream.Client)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
