//go:build wireinject
// +build wireinject

package di

import (
	"StockWatch/pkg/config"
	"StockWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideRecordStore,
		ProvideMarketData,
		ProvideNotifier,
		ProvideEventPublisher,
		ProvideRunHistory,
		ProvideRunLock,
		ProvideQuoteCache,

		// Use cases
		ProvidePruner,
		ProvideWatchRunner,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
