//go:build wireinject
// +build wireinject

package di

import (
	"NiftyPulse/pkg/config"
	"NiftyPulse/pkg/server"

	"github.com/google/wire"
)

var sourceSet = wire.NewSet(
	ProvideLogger,
	ProvideResolver,
	ProvideUpstoxClient,
	ProvideIntradaySource,
	ProvideClickHouseClient,
	ProvideBarStore,
	ProvideBackfillUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		sourceSet,

		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaPublisher,
		ProvideKafkaConsumer,
		ProvideJournal,

		// Market data
		ProvideChainCache,
		ProvideChainSource,
		ProvideSentimentSource,

		// Analytics state
		ProvideOscillator,
		ProvideStructureDetector,
		ProvideRegimeTracker,
		ProvideRegimeStore,
		ProvideSnapshotStore,

		// Use cases
		ProvideIntentDispatcher,
		ProvidePipeline,
		ProvidePersistPipeline,
		ProvideEventBuilder,
		ProvideIngestor,
		ProvideKafkaBarsHandler,
		ProvideJobQueue,

		// HTTP
		ProvideMarketHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeBackfill wires the one-shot backfill command.
func InitializeBackfill(cfg *config.Config) (*BackfillTool, error) {
	wire.Build(
		sourceSet,
		ProvideBackfillTool,
	)
	return &BackfillTool{}, nil
}
