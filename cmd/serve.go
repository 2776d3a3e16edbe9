package cmd

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jjenkins/bobbot/internal/extract"
	"github.com/jjenkins/bobbot/internal/handlers"
	"github.com/jjenkins/bobbot/internal/service"
	"github.com/jjenkins/bobbot/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chatbot skill server",
	Long: `Start the HTTP server that answers chatbot skill requests for cafeteria
menus, regulations and the AI assistant, accepts menu uploads and serves
menu images and converted regulation pages.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to run the server on (default from server.port or PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	started := time.Now()
	if port == "" {
		port = cfg.Server.Port
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	portal, err := newPortalClient()
	if err != nil {
		return err
	}

	// Initialize stores
	regs := store.NewRegulationStore(db)
	diets := store.NewDietStore(db)

	metrics := newMetrics()
	refreshGauges(ctx, metrics, regs)

	locations := extract.NewLocationResolver()
	dates := extract.NewDateExtractor(func() time.Time { return time.Now().In(seoul) })
	dietService := service.NewDietService(
		service.NewDietUploadProcessor(dates, locations, cfg.Server.ImageDir, seoul),
		diets,
		metrics,
		logger,
	)

	ai := cfg.AI
	var completer service.Completer
	if ai.APIKey != "" {
		completer = service.NewAnthropicCompleter(ai.APIKey, ai.BaseURL, ai.Model, ai.SystemPrompt, ai.MaxTokens)
	} else {
		logger.Warn("AI assistant disabled, no API key configured")
	}
	assistant := service.NewAssistant(completer, ai.ReplyTimeout, ai.GenerationTimeout, ai.CacheTTL, ai.CacheSize, metrics, logger)

	app := fiber.New(fiber.Config{
		AppName:   "bobbot",
		BodyLimit: 20 << 20,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	publicBase := cfg.Server.PublicBaseURL

	// Routes
	app.Get("/health", handlers.HealthHandler(started))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Diet routes
	app.Post("/diet/skill", handlers.DietSkillHandler(dietService, locations, publicBase, logger))
	app.Post("/diet/upload", handlers.DietUploadHandler(dietService, logger))

	// Regulation routes
	regulationSkill := handlers.RegulationSkillHandler(regs, portal, publicBase, logger)
	app.Post("/regulation/skill", regulationSkill)
	app.Post("/get_rules", regulationSkill)
	app.Get("/regulations", handlers.RegulationsHandler(regs, portal))
	app.Get("/regulations/:id", handlers.RegulationDetailHandler(regs, portal))

	// AI route
	app.Post("/ai/skill", handlers.AISkillHandler(assistant))

	// Static assets
	app.Static("/image", cfg.Server.ImageDir)
	app.Static("/regulation", cfg.Conversion.HTMLDir)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.String("port", port))
	return app.Listen(":" + port)
}
