package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jjenkins/bobbot/internal/scheduler"
	"github.com/jjenkins/bobbot/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleMetricsAddr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run crawl and convert on their cron schedules",
	Long: `Schedule keeps running and triggers the crawl and convert batches on the
cron specs in schedule.crawl and schedule.convert. Only one batch runs at a
time; a tick that fires while another batch is running is skipped.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().StringVar(&scheduleMetricsAddr, "metrics-addr", "", "Address to expose /metrics on, e.g. :9100 (disabled when empty)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	portal, err := newPortalClient()
	if err != nil {
		return err
	}
	regs := store.NewRegulationStore(db)
	metrics := newMetrics()
	refreshGauges(ctx, metrics, regs)

	crawler := newCrawler(portal, regs, metrics)
	pipeline := newPipeline(portal, regs, metrics)

	s := scheduler.New(ctx, logger)
	err = s.Add(scheduler.Job{
		Name: "crawl",
		Spec: cfg.Schedule.Crawl,
		Run: func(ctx context.Context) error {
			stats, err := crawler.Crawl(ctx)
			refreshGauges(ctx, metrics, regs)
			if err != nil {
				return err
			}
			logger.Info("Crawl finished",
				zap.Int("posts", stats.Posts),
				zap.Int("inserted", stats.Inserted),
				zap.Int("updated", stats.Updated),
				zap.Int("failed_boards", len(stats.Failures)),
			)
			return nil
		},
	})
	if err != nil {
		return err
	}

	err = s.Add(scheduler.Job{
		Name: "convert",
		Spec: cfg.Schedule.Convert,
		Run: func(ctx context.Context) error {
			result, err := pipeline.Run(ctx)
			refreshGauges(ctx, metrics, regs)
			if err != nil {
				return err
			}
			logger.Info("Conversion finished",
				zap.Int("pending", result.Total),
				zap.Int("converted", result.Converted),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed),
			)
			return nil
		},
	})
	if err != nil {
		return err
	}

	if scheduleMetricsAddr != "" {
		srv := &http.Server{Addr: scheduleMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("Serving metrics", zap.String("addr", scheduleMetricsAddr))
	}

	logger.Info("Scheduler running", zap.String("crawl", cfg.Schedule.Crawl), zap.String("convert", cfg.Schedule.Convert))
	s.Run()
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("scheduler stopped unexpectedly")
}
