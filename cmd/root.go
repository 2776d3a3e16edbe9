package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjenkins/bobbot/internal/config"
	applog "github.com/jjenkins/bobbot/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bobbot",
	Short: "Backend for the agency chatbot",
	Long: `bobbot keeps the agency's regulations and cafeteria menus available to
the chatbot. It crawls the intranet regulation boards, converts attached
HWP and PDF documents to HTML and serves the chatbot skill endpoints.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Assigned here rather than in the literal: initConfig reads rootCmd's
	// flags, which would otherwise be an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

// initConfig layers defaults, the config file, .env and the environment,
// then builds the logger.
func initConfig() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := config.SetDefaults(v); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flag := rootCmd.PersistentFlags().Lookup("log-level"); flag.Changed {
		v.Set("log.level", flag.Value.String())
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	l, err := applog.New(cfg.App.Environment, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger = l
	logger.Debug("Configuration loaded", zap.String("config_file", v.ConfigFileUsed()))
	return nil
}
