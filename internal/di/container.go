package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-smart-labels/internal/adapters/ingest"
	"github.com/mikey/llm-smart-labels/internal/adapters/store"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/exclusion"
	"github.com/mikey/llm-smart-labels/internal/factory"
	"github.com/mikey/llm-smart-labels/internal/logging"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"github.com/mikey/llm-smart-labels/internal/utils"
)

// BuildContainer creates and configures the server dependency injection container
func BuildContainer(ctx context.Context, configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewFromFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideEngine(ctx, container); err != nil {
		return nil, err
	}

	// Register SMTP ingest
	if err := container.Provide(factory.NewIngestFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		f *factory.IngestFactory,
		applicator *core.RealtimeApplicator,
		st *store.SQLStore,
		tp *utils.TextProcessor,
	) (*ingest.SMTPIngest, error) {
		return f.CreateIngest(applicator, st, tp)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideEngine registers everything between the configuration and the
// realtime and backfill processors. Both containers share it.
func provideEngine(ctx context.Context, container *dig.Container) error {
	// Register shutdown hooks and factories
	for _, constructor := range []interface{}{
		factory.NewClosers,
		factory.NewTextProcessorFactory,
		factory.NewStoreFactory,
		factory.NewCacheFactory,
		factory.NewLLMFactory,
		factory.NewApplierFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register text processing
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory, tp *utils.TextProcessor) *prompt.Builder {
		return f.CreatePromptBuilder(tp)
	}); err != nil {
		return err
	}

	// Register store
	if err := container.Provide(func(f *factory.StoreFactory) (*store.SQLStore, error) {
		return f.CreateStore(ctx)
	}); err != nil {
		return err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory, st *store.SQLStore) (core.CacheRepository, error) {
		return f.CreateCacheRepository(ctx, st)
	}); err != nil {
		return err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.LLMFactory, repo core.CacheRepository) (core.Classifier, error) {
		return f.CreateClassifier(ctx, repo)
	}); err != nil {
		return err
	}

	// Register label applier
	if err := container.Provide(func(f *factory.ApplierFactory, st *store.SQLStore) (core.LabelApplier, error) {
		return f.CreateLabelApplier(ctx, st)
	}); err != nil {
		return err
	}

	// Register AI exclusion list
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *exclusion.Checker {
		return exclusion.NewChecker(cfg.GetSmartLabels().AIExcludedDomains, logger)
	}); err != nil {
		return err
	}

	// Register matcher
	if err := container.Provide(func(
		cfg *config.Config,
		st *store.SQLStore,
		classifier core.Classifier,
		exclusions *exclusion.Checker,
		logger *zap.Logger,
	) (*core.SmartLabelMatcher, error) {
		llmCfg, err := cfg.GetLLM()
		if err != nil {
			return nil, err
		}
		return core.NewSmartLabelMatcher(st, classifier, logger, llmCfg.Timeout, exclusions)
	}); err != nil {
		return err
	}

	// Register realtime applicator and backfill processor
	if err := container.Provide(func(
		cfg *config.Config,
		matcher *core.SmartLabelMatcher,
		applier core.LabelApplier,
		logger *zap.Logger,
	) *core.RealtimeApplicator {
		return core.NewRealtimeApplicator(matcher, applier, logger, cfg.GetSmartLabels().ApplyConcurrency)
	}); err != nil {
		return err
	}
	return container.Provide(func(
		cfg *config.Config,
		st *store.SQLStore,
		matcher *core.SmartLabelMatcher,
		applier core.LabelApplier,
		logger *zap.Logger,
	) *core.BackfillProcessor {
		labelsCfg := cfg.GetSmartLabels()
		return core.NewBackfillProcessor(st, matcher, applier, logger, labelsCfg.BackfillBatchSize, labelsCfg.ApplyConcurrency)
	})
}
