package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/denysvitali/nextcloud-files-bot/pkg/bot"
	"github.com/denysvitali/nextcloud-files-bot/pkg/config"
	"github.com/denysvitali/nextcloud-files-bot/pkg/i18n"
	"github.com/denysvitali/nextcloud-files-bot/pkg/nextcloud"
	"github.com/denysvitali/nextcloud-files-bot/pkg/server"
	"github.com/denysvitali/nextcloud-files-bot/pkg/telemetry"
	"github.com/denysvitali/nextcloud-files-bot/pkg/users"
)

const shutdownTimeout = 30 * time.Second

// botCmd represents the bot command
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Run the Telegram bot together with its HTTP side server. Updates are
received by long polling unless the webhook is enabled.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)

	botCmd.Flags().IntP("port", "p", 8080, "Port of the HTTP side server")
	botCmd.Flags().Bool("webhook", false, "Receive updates through the webhook instead of long polling")
	botCmd.Flags().String("webhook-url", "", "Public base URL Telegram posts updates to")
	botCmd.Flags().String("users-db", "users.db", "Path of the users database")
	botCmd.Flags().StringSlice("allow", nil, "Telegram user ids allowed to use the bot")
	botCmd.Flags().Bool("enable-telemetry", false, "Enable OpenTelemetry tracing")
	botCmd.Flags().String("otel-endpoint", "", "OpenTelemetry endpoint (if empty, uses auto-export)")

	_ = viper.BindPFlag("server.port", botCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("telegram.webhook.enabled", botCmd.Flags().Lookup("webhook"))
	_ = viper.BindPFlag("telegram.webhook.base_url", botCmd.Flags().Lookup("webhook-url"))
	_ = viper.BindPFlag("storage.users_db", botCmd.Flags().Lookup("users-db"))
	_ = viper.BindPFlag("auth.allowed_users", botCmd.Flags().Lookup("allow"))
	_ = viper.BindPFlag("telemetry.enabled", botCmd.Flags().Lookup("enable-telemetry"))
	_ = viper.BindPFlag("telemetry.endpoint", botCmd.Flags().Lookup("otel-endpoint"))
}

func runBot(cmd *cobra.Command, args []string) error {
	logger := GetLogger()
	logger.Infof("Starting Nextcloud files bot %s", Version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Telemetry.Enabled {
		logger.Info("Initializing OpenTelemetry")
		cleanup, err := telemetry.Initialize(cfg.Telemetry, Version, logger)
		if err != nil {
			logger.Warnf("Failed to initialize telemetry: %v", err)
		} else {
			defer cleanup()
		}
	}

	storage, err := nextcloud.New(nextcloud.Config{
		URL:       cfg.Nextcloud.URL,
		Username:  cfg.Nextcloud.Username,
		Password:  cfg.Nextcloud.Password,
		ChunkSize: cfg.Nextcloud.ChunkSize,
		Timeout:   cfg.Nextcloud.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create nextcloud client: %w", err)
	}

	userStore, err := users.Open(cfg.Storage.UsersDB, logger)
	if err != nil {
		return err
	}
	defer userStore.Close()
	if err := userStore.Seed(cfg.Auth.AllowedUsers); err != nil {
		return fmt.Errorf("failed to seed allowed users: %w", err)
	}

	tr, err := i18n.New(cfg.I18n.DefaultLanguage, cfg.I18n.Languages)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	api, err := bot.NewAPI(cfg.Telegram)
	if err != nil {
		return err
	}
	logger.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	b := bot.New(cfg, api, storage, userStore, tr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx)
	})

	if cfg.Server.Enabled {
		srv := server.New(cfg, server.Deps{
			Updates:  b,
			Sessions: b.Sessions(),
			Users:    userStore,
		}, logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("bot stopped: %w", err)
	}
	logger.Info("Bot stopped gracefully")
	return nil
}
