package app

import (
	"context"

	"github.com/acted/rules-engine/internal/acknowledgment"
	"github.com/acted/rules-engine/internal/audit"
	"github.com/acted/rules-engine/internal/dispatcher"
	"github.com/acted/rules-engine/internal/engine"
	"github.com/acted/rules-engine/internal/function"
	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/internal/ruleset"
	"github.com/acted/rules-engine/internal/schema"
	"github.com/acted/rules-engine/internal/vat"
	"github.com/myrteametrics/myrtea-sdk/v5/postgres"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	recorder       audit.Recorder
	resync         *cron.Cron
	stopListener   context.CancelFunc
	listenerClosed chan struct{}
)

// initRepositories initialize all Postgresql repositories
func initRepositories() {
	dbClient := postgres.DB()
	rule.ReplaceGlobals(rule.NewPostgresRepository(dbClient))
	schema.ReplaceGlobals(schema.NewPostgresRepository(dbClient))
	messagetemplate.ReplaceGlobals(messagetemplate.NewPostgresRepository(dbClient))
	audit.ReplaceGlobals(audit.NewPostgresRepository(dbClient))
	acknowledgment.ReplaceGlobals(acknowledgment.NewPostgresRepository(dbClient))
	vat.ReplaceGlobals(vat.NewPostgresRepository(dbClient))
}

func initServices() {
	functions := initFunctions()
	cache := ruleset.NewCache(rule.R(), schema.R())
	publisher := ruleset.NewPublisher(rule.R(), schema.R(), messagetemplate.R(), rule.Validator{Functions: functions},
		cache, ruleset.NewPostgresNotifier(postgres.DB(), viper.GetString("ENGINE_RULES_NOTIFY_CHANNEL")))

	initListener(cache)
	initResync(cache)
	initCatalogs(publisher)

	if viper.GetBool("ENGINE_AUDIT_ASYNC") {
		recorder = audit.NewAsyncRecorder(audit.R(), viper.GetInt("ENGINE_AUDIT_QUEUE_SIZE"))
	} else {
		recorder = audit.NewSyncRecorder(audit.R())
	}

	e := engine.New(cache, dispatcher.New(messagetemplate.R(), functions, nil), recorder,
		engine.WithTimeout(viper.GetDuration("ENGINE_EXECUTION_TIMEOUT")))
	engine.ReplaceGlobals(e)

	zap.L().Info("Rule engine initialized", zap.Strings("functions", functions.Names()),
		zap.Duration("timeout", viper.GetDuration("ENGINE_EXECUTION_TIMEOUT")))
}

func initFunctions() *function.Registry {
	functions := function.NewRegistry()
	if err := function.RegisterBuiltins(functions); err != nil {
		zap.L().Fatal("Register builtin functions", zap.Error(err))
	}
	if err := vat.RegisterFunctions(functions, vat.R(), nil); err != nil {
		zap.L().Fatal("Register VAT functions", zap.Error(err))
	}
	return functions
}

func initListener(cache *ruleset.Cache) {
	channel := viper.GetString("ENGINE_RULES_NOTIFY_CHANNEL")
	if channel == "" {
		zap.L().Info("Rule set listener disabled")
		return
	}
	listener, err := ruleset.NewListener(listenerDSN(), channel, cache)
	if err != nil {
		zap.L().Fatal("Couldn't start the rule set listener", zap.String("channel", channel), zap.Error(err))
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopListener = cancel
	listenerClosed = make(chan struct{})
	go func() {
		defer close(listenerClosed)
		listener.Run(ctx)
	}()
}

// initResync invalidates the cache periodically, covering notifications lost while disconnected
func initResync(cache *ruleset.Cache) {
	spec := viper.GetString("ENGINE_RULES_RESYNC_CRON")
	if spec == "" {
		return
	}
	resync = cron.New()
	_, err := resync.AddFunc(spec, func() {
		revision := cache.Invalidate()
		zap.L().Debug("Rule set cache resynchronized", zap.Uint64("revision", revision))
	})
	if err != nil {
		zap.L().Fatal("Invalid rule set resync schedule", zap.String("spec", spec), zap.Error(err))
	}
	resync.Start()
}

func initCatalogs(publisher *ruleset.Publisher) {
	ctx := context.Background()
	if viper.GetBool("ENGINE_SEED_VAT_CATALOG") {
		if err := vat.Seed(vat.R()); err != nil {
			zap.L().Fatal("Seed VAT lookup tables", zap.Error(err))
		}
		catalog, err := vat.Catalog()
		if err != nil {
			zap.L().Fatal("Load VAT catalog", zap.Error(err))
		}
		if err := publisher.PublishCatalog(ctx, catalog); err != nil {
			zap.L().Fatal("Publish VAT catalog", zap.Error(err))
		}
		zap.L().Info("VAT catalog published", zap.Int("rules", len(catalog.Rules)))
	}

	if path := viper.GetString("ENGINE_CATALOG_PATH"); path != "" {
		catalog, err := rule.LoadCatalogFile(path)
		if err != nil {
			zap.L().Fatal("Load rule catalog", zap.String("path", path), zap.Error(err))
		}
		if err := publisher.PublishCatalog(ctx, catalog); err != nil {
			zap.L().Fatal("Publish rule catalog", zap.String("path", path), zap.Error(err))
		}
		zap.L().Info("Rule catalog published", zap.String("path", path), zap.Int("rules", len(catalog.Rules)))
	}
}

func stopServices() {
	if resync != nil {
		<-resync.Stop().Done()
	}
	if stopListener != nil {
		stopListener()
		<-listenerClosed
	}
	if async, ok := recorder.(*audit.AsyncRecorder); ok {
		async.Close()
	}
	zap.L().Info("Rule engine services stopped")
}
