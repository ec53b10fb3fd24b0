package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/whoopctl/whoopctl/internal/app"
	"github.com/whoopctl/whoopctl/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "whoopctl",
		Usage: "WHOOP API session manager and data fetcher",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otlp|otlp-grpc|otlp-stdout)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "token storage backend (file|keyring)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--token-file",
				Usage: "path to token file (file storage)",
			},
			&cli.StringFlag{
				Name:  "auth--settings-file",
				Usage: "path to settings file holding client credentials",
			},
			&cli.StringFlag{
				Name:  "oauth--redirect-uri",
				Usage: "OAuth redirect URI (a loopback URI enables the local callback server)",
				Value: app.DefaultConfigRedirectURI,
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "WHOOP API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			profileCommand(),
			recoveryCommand(),
			sleepCommand(),
			workoutCommand(),
			summaryCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// setup loads the configuration, installs logging, and wires the app.
// Overrides run after loading, before validation-by-construction in app.New.
func setup(ctx context.Context, cmd *cli.Command, overrides ...func(*app.Config)) (*app.App, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}

	// Set up observability before creating app
	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	return application, nil
}
