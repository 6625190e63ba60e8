package cmd

import (
	"fmt"
	"io"
	"os"

	"golang-bankrec-service/cmd/reconciler/config"
	"golang-bankrec-service/internal/chart"
	fixtures "golang-bankrec-service/internal/config"
	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/db"
	"golang-bankrec-service/internal/matcher"
	"golang-bankrec-service/internal/queue"
	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/reporter"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// runtime holds what a command opened and must close.
type runtime struct {
	settings *config.Settings
	log      logger.Logger
	fixture  *fixtures.Fixture
	chart    *chart.Chart
	store    *db.Store
	queue    *queue.BoltQueue
	service  *reconciler.Service
}

// loadSettings reads the settings and installs the global logger.
func loadSettings() (*config.Settings, logger.Logger, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(settings.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return nil, nil, err
	}
	logger.SetGlobalLogger(log)
	return settings, log, nil
}

// openRuntime loads the fixture, opens the database and, when a queue path
// is configured, the bbolt queue whose file also caches resolved rates.
func openRuntime(settings *config.Settings, log logger.Logger) (*runtime, error) {
	fixture, err := fixtures.LoadFixture(settings.FixturePath)
	if err != nil {
		return nil, err
	}
	c, err := fixture.Chart()
	if err != nil {
		return nil, err
	}

	rt := &runtime{settings: settings, log: log, fixture: fixture, chart: c}
	if rt.store, err = db.OpenStore(settings.DatabasePath); err != nil {
		return nil, err
	}

	var resolver currency.Resolver = currency.NewCachedResolver(fixture.Resolver())
	var q queue.Queue
	if settings.QueuePath != "" {
		if rt.queue, err = queue.OpenBoltQueue(settings.QueuePath); err != nil {
			return nil, multierr.Append(err, rt.Close())
		}
		q = rt.queue
		persistent, err := currency.NewBoltResolver(rt.queue.DB(), fixture.Resolver())
		if err != nil {
			return nil, multierr.Append(err, rt.Close())
		}
		resolver = currency.NewCachedResolver(persistent)
	}

	deps := session.Deps{
		Chart:     c,
		Ledger:    rt.store,
		Converter: currency.NewConverter(resolver, c.CompanyCurrency()),
		Rules:     matcher.NewMatchingEngine(c, rt.store, settings.CreateMatchingConfig(), log),
		Logger:    log,
	}
	rt.service, err = reconciler.NewService(deps, rt.store, q, settings.CreateReconcilerConfig())
	if err != nil {
		return nil, multierr.Append(err, rt.Close())
	}

	log.WithFields(logger.Fields{
		"db":      settings.DatabasePath,
		"fixture": settings.FixturePath,
		"queue":   settings.QueuePath,
	}).Debug("Runtime opened")
	return rt, nil
}

// Close releases the database and the queue.
func (rt *runtime) Close() error {
	var err error
	if rt.queue != nil {
		err = multierr.Append(err, rt.queue.Close())
	}
	if rt.store != nil {
		err = multierr.Append(err, rt.store.Close())
	}
	return err
}

// writeReport renders result to the configured output.
func writeReport(settings *config.Settings, log logger.Logger, result interface{}, stdout io.Writer) (err error) {
	generator, err := reporter.NewSafeReportGenerator(settings.CreateReportConfig(), log)
	if err != nil {
		return err
	}

	output := stdout
	if settings.OutputFile != "" {
		file, err := os.Create(settings.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { err = multierr.Append(err, file.Close()) }()
		output = file
	}
	return generator.GenerateReportSafely(result, output)
}
