// Command setwebhook points the moderation bot's Telegram webhook at this service and reports
// its status. It exits non-zero when registration is not confirmed.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/config"
	"github.com/ivankudzin/brokerreviews/internal/infra/logger"
	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
	authsvc "github.com/ivankudzin/brokerreviews/internal/services/auth"
)

func main() {
	app := cli.App{
		Name:  "setwebhook",
		Usage: "register and inspect the moderation bot webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config file",
				Value:   "configs/config.yaml",
				EnvVars: []string{"APP_CONFIG"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "overall deadline for provider calls",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "register the webhook URL with Telegram and confirm it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "webhook URL; defaults to telegram.webhook_url plus the configured secret",
					},
				},
				Action: runRegister,
			},
			{
				Name:   "status",
				Usage:  "print the webhook status reported by Telegram",
				Action: runStatus,
			},
			{
				Name:  "service-token",
				Usage: "mint a bearer token for the content system",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "subject",
						Usage: "name of the calling system",
						Value: "content-system",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "token lifetime",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: runServiceToken,
			},
		},
		DefaultCommand: "register",
	}
	app.RunAndExitOnError()
}

func loadEnv(cctx *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func newClient(cfg config.Config) (*telegram.Client, error) {
	return telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		ChannelID:   cfg.Telegram.ChannelID,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Timeout:     cfg.Telegram.RequestTimeout,
	})
}

func runRegister(cctx *cli.Context) error {
	cfg, log, err := loadEnv(cctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() {
		_ = log.Sync()
	}()

	url := cctx.String("url")
	if url == "" {
		url = cfg.Telegram.WebhookEndpoint()
	}

	client, err := newClient(cfg)
	if err != nil {
		log.Error("telegram client unavailable", zap.Error(err))
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := context.WithTimeout(cctx.Context, cctx.Duration("timeout"))
	defer cancel()

	if err := register(ctx, client, url); err != nil {
		log.Error("webhook registration failed", zap.Error(err))
		return cli.Exit(err.Error(), 1)
	}

	log.Info("webhook registered", zap.String("bot", client.BotUsername()))
	return nil
}

type webhookRegistrar interface {
	RegisterWebhook(ctx context.Context, url string) error
	GetWebhookStatus(ctx context.Context) (telegram.WebhookInfo, error)
}

// register sets the webhook and reads it back; the registration only counts when Telegram
// reports the same URL.
func register(ctx context.Context, client webhookRegistrar, url string) error {
	if err := client.RegisterWebhook(ctx, url); err != nil {
		return err
	}

	info, err := client.GetWebhookStatus(ctx)
	if err != nil {
		return fmt.Errorf("confirm webhook: %w", err)
	}
	if info.URL != url {
		return &telegram.RegistrationError{URL: url, Err: fmt.Errorf("provider reports webhook %q", info.URL)}
	}
	return nil
}

func runStatus(cctx *cli.Context) error {
	cfg, log, err := loadEnv(cctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() {
		_ = log.Sync()
	}()

	client, err := newClient(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := context.WithTimeout(cctx.Context, cctx.Duration("timeout"))
	defer cancel()

	info, err := client.GetWebhookStatus(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	printStatus(info, cfg.Telegram.WebhookEndpoint())
	return nil
}

func printStatus(info telegram.WebhookInfo, expected string) {
	fmt.Fprintf(os.Stdout, "url:                  %s\n", info.URL)
	fmt.Fprintf(os.Stdout, "matches config:       %t\n", info.URL == expected)
	fmt.Fprintf(os.Stdout, "pending updates:      %d\n", info.PendingUpdateCount)
	fmt.Fprintf(os.Stdout, "max connections:      %d\n", info.MaxConnections)
	if !info.LastErrorDate.IsZero() {
		fmt.Fprintf(os.Stdout, "last error:           %s (%s)\n", info.LastErrorMessage, info.LastErrorDate.Format(time.RFC3339))
	}
}

func runServiceToken(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	manager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cctx.Duration("ttl"))
	token, expiresAt, err := manager.GenerateServiceToken(cctx.String("subject"), cfg.Auth.ServiceRole)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Fprintln(os.Stdout, token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
