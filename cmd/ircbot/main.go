package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/dalnet/ircbot/internal/config"
	"github.com/dalnet/ircbot/internal/irc"
	"github.com/dalnet/ircbot/internal/status"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("c", "./config.yaml", "Path to configuration file (.yaml or .toml)")
	envPath := flag.String("env", ".env", "Optional dotenv file with IRCBOT_* overrides")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	showVersionLong := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("ircbot version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if _, err := os.Stat(*envPath); err == nil {
		if err := godotenv.Load(*envPath); err != nil {
			logger.Warnf("could not load %s: %v", *envPath, err)
		}
	}

	if err := run(*configPath, logger); err != nil {
		logger.Fatal(err)
	}
}

func run(configPath string, logger *logrus.Logger) error {
	if !filepath.IsAbs(configPath) {
		wd, _ := os.Getwd()
		configPath = filepath.Join(wd, configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	bot, err := irc.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	registerCommands(bot, logger.WithField("component", "commands"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Infof("received signal %v, shutting down", sig)
		bot.Quit("Received shutdown signal")
		cancel()
	}()

	var srv *status.Server
	if cfg.StatusAddr != "" {
		srv = status.New(cfg.StatusAddr, bot, logger.WithField("component", "status"))
		srv.Start()
	}

	logger.Infof("ircbot %s starting with %d server(s)", version, len(cfg.Servers))
	_ = bot.Run(ctx)

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}
