package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/localkb/lkb/internal/config"
	"github.com/localkb/lkb/internal/engine"
	"github.com/localkb/lkb/internal/engine/manticore"
	"github.com/localkb/lkb/internal/server"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// parseLogLevel reads the LOG_LEVEL environment variable and falls back
// to info.
func parseLogLevel() logrus.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func main() {
	// Create context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// A .env next to the binary feeds the environment before the CLI
	// reads it
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env")
	}

	app := &cli.Command{
		Name:    "lkb",
		Usage:   "HTTP search bridge for a local MediaWiki knowledge base",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath,
				Usage:   "Path to the configuration file",
				Sources: cli.EnvVars("LKB_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Listen address (overrides the configuration file)",
				Sources: cli.EnvVars("LKB_LISTEN"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Listen port (overrides the configuration file)",
				Sources: cli.EnvVars("LKB_PORT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("lkb version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
			{
				Name:  "config-validate",
				Usage: "Validate the configuration file for errors",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config-path",
						Usage: "Path to the configuration file (default: config.yaml)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return handleConfigValidate(cmd, logger)
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, logger)
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command, logger *logrus.Logger) error {
	cfg, err := config.Load(cmd.String("config"), logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Command line and environment overrides beat the file
	var listen string
	if cmd.IsSet("listen") {
		listen = cmd.String("listen")
	}
	var port int
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}
	if err := cfg.Override(listen, port, logger); err != nil {
		return err
	}

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	logger.Infof("Starting LocalKnowledgeBase version %s (commit: %s, built: %s)",
		Version, Commit, BuildDate)
	printBanner(cfg, eng)

	return server.New(*cfg, eng, Version, logger).Run(ctx)
}

// newEngine builds the search engine the configuration names.
func newEngine(cfg *config.Config, logger *logrus.Logger) (engine.Engine, error) {
	switch cfg.Engine.Type {
	case "manticore":
		return manticore.New(cfg.Engine, Version, logger), nil
	default:
		return nil, fmt.Errorf("unsupported engine type: %s", cfg.Engine.Type)
	}
}

func printBanner(cfg *config.Config, eng engine.Engine) {
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Printf("LocalKnowledgeBase %s\n", Version)
	fmt.Printf("%s Server running on http://%s\n", green("✓"), cfg.Server.Addr())
	fmt.Printf("%s %s integration enabled\n", green("✓"), eng.Name())
	fmt.Printf("  - Endpoint: %s\n", eng.Endpoint())
	fmt.Printf("  - Index: %s\n", cfg.Engine.IndexName)
	fmt.Printf("  - Base URL: %s\n", cfg.Engine.BaseURL)
	fmt.Printf("  - Default search count: %d\n", cfg.Engine.SearchCount)
	fmt.Printf("  - Snippet length: %d\n", cfg.Engine.SnippetLength)
	fmt.Println("\nPress Ctrl+C to stop")
}

func handleConfigValidate(cmd *cli.Command, logger *logrus.Logger) error {
	path := cmd.String("config-path")
	if path == "" {
		path = config.DefaultConfigPath
	}

	cfg, err := config.Load(path, logger)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Configuration valid\n", green("✓"))
	fmt.Printf("  - Listen: %s\n", cfg.Server.Addr())
	fmt.Printf("  - Engine: %s at %s://%s:%d%s\n",
		cfg.Engine.Type, cfg.Engine.Scheme, cfg.Engine.Host, cfg.Engine.HostPort, cfg.Engine.URLPath)
	fmt.Printf("  - Index: %s\n", cfg.Engine.IndexName)
	fmt.Printf("  - Query template: %s\n", cfg.Engine.TemplatePath)
	return nil
}
