//go:build wireinject
// +build wireinject

package di

import (
	"CandleSync/pkg/config"
	"CandleSync/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCandleStore,
		ProvideQuoteSource,
		ProvideCache,
		ProvideReportPublisher,

		// Use cases
		ProvideSeries,
		ProvideSynchronizer,
		ProvideSyncJob,

		// Application server
		ProvideScheduler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
