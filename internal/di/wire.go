//go:build wireinject
// +build wireinject

package di

import (
	"TrapFlow/pkg/config"
	"TrapFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideStore,
		ProvideTradeStream,
		ProvideTrapPublisher,

		// Analytics
		ProvideWindowedStats,
		ProvideFibAnalyzer,
		ProvideHFDetector,

		// Use cases
		ProvideTickPipeline,
		ProvideFeed,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
