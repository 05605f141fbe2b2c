//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/mjkim-dev/smartstore-chatbot/internal/bootstrap"
	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	httpiface "github.com/mjkim-dev/smartstore-chatbot/internal/interface/http"
	"github.com/mjkim-dev/smartstore-chatbot/pkg/logger"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/config"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideChatGPTClient,
		provideIndexConfig,
		provideEmbedder,
		provideCollectionStore,
		index.New,
		provideStatsStore,
		provideTokenCounter,
		provideSessionRegistry,
		provideHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
