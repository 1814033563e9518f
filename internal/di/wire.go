//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SimEcon/pkg/config"
	"SimEcon/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideClickHouseClient,

		// Repositories
		ProvideTransactionArchive,
		ProvideTransactionPublisher,
		ProvideLimiter,

		// Economy and use cases
		ProvideEconomy,
		ProvideSimulation,
		ProvideTradeDesk,
		ProvideBatchJob,
		ProvideBatchQueue,
		ProvideTransactionRelay,
		ProvideKafkaConsumer,

		// Operator surface
		ProvideFeedHub,
		ProvideQuoteCache,
		ProvideEconomyHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
