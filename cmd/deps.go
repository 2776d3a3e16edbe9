package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jjenkins/bobbot/internal/service"
	"github.com/jjenkins/bobbot/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// seoul is the portal's time zone; post dates carry no offset.
var seoul = mustLoadLocation("Asia/Seoul")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// openDB connects and brings the schema up to date.
func openDB() (*sqlx.DB, error) {
	logger.Info("Connecting to database")
	db, err := store.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newMetrics() *service.Metrics {
	return service.NewMetrics(prometheus.DefaultRegisterer)
}

func newPortalClient() (*service.PortalClient, error) {
	return service.NewPortalClient(cfg.Portal.BaseURL, cfg.Portal.RequestTimeout, cfg.Portal.RequestDelay)
}

func newCrawler(portal *service.PortalClient, regs *store.RegulationStore, metrics *service.Metrics) *service.Crawler {
	return service.NewCrawler(
		portal,
		service.NewPostParser(seoul),
		regs,
		cfg.Portal.Boards,
		cfg.Portal.MaxPostsPerBoard,
		metrics,
		logger,
	)
}

func newPipeline(portal *service.PortalClient, regs *store.RegulationStore, metrics *service.Metrics) *service.ConversionPipeline {
	c := cfg.Conversion
	runner := service.ExecRunner{}
	converters := []service.Converter{
		service.NewHWPConverter(runner, c.HWPCommand),
		service.NewPDFConverter(runner, c.DockerCommand, c.PDFImage, c.Zoom),
	}
	opts := service.ConversionOptions{
		DownloadDir:   c.DownloadDir,
		HTMLDir:       c.HTMLDir,
		KeepOriginals: c.KeepOriginals,
		Timeout:       c.Timeout,
		MaxAttempts:   c.MaxAttempts,
	}
	return service.NewConversionPipeline(regs, portal, converters, opts, metrics, logger)
}

// refreshGauges is best effort; a failure only leaves stale gauges.
func refreshGauges(ctx context.Context, metrics *service.Metrics, regs *store.RegulationStore) {
	if err := metrics.RefreshStoreGauges(ctx, regs); err != nil {
		logger.Warn("Failed to refresh store gauges", zap.Error(err))
	}
}
