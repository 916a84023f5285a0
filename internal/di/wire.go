//go:build wireinject
// +build wireinject

package di

import (
	"StockPulse/pkg/config"
	"StockPulse/pkg/server"

	"github.com/google/wire"
)

// coreSet builds the analysis pipeline shared by the server and the CLI.
var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideRawCache,
	ProvideProviders,
	ProvideFetcher,
	ProvideScheduler,
	ProvideAssembler,
	ProvideCalculator,
	ProvideScorer,
	ProvideNarrator,
	ProvideProber,
	ProvideOrchestrator,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		coreSet,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarArchive,
		ProvideFragmentPublisher,

		// Transports
		ProvideScanRequestHandler,
		ProvideScheduledScans,
		ProvideAnalysisHandler,
		ProvideRateLimiter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeToolkit wires the pipeline without archive or messaging for one-shot commands.
func InitializeToolkit(cfg *config.Config) (*Toolkit, error) {
	wire.Build(
		coreSet,
		ProvideNoArchive,
		ProvideToolkit,
	)
	return &Toolkit{}, nil
}
