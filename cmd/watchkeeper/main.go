package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/actions"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/advisory"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/assist"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/config"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/httpapi"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/metrics"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/standingorders"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/watch"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/wshub"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var envPath string

var rootCmd = &cobra.Command{
	Use:     "watchkeeper",
	Short:   "watchkeeper - the copilot's Policy Engine and Tool Router",
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("watchkeeper %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Standing Orders document tooling",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Parse and validate a Standing Orders document without starting the server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, _, err := standingorders.Load(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ok")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "path to a .env file to load before reading the process environment")
	rootCmd.AddCommand(versionCmd)
	policyCmd.AddCommand(policyValidateCmd)
	rootCmd.AddCommand(policyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().Msg("starting watchkeeper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("failed to open persistence store")
	}
	defer store.Close()

	engine, err := policy.NewEngine(cfg.StandingOrdersPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StandingOrdersPath).Msg("failed to load standing orders")
	}
	if fw, err := policy.NewFileWatcher(engine, cfg.StandingOrdersPath); err != nil {
		log.Warn().Err(err).Msg("failed to start standing orders file watcher, reload will rely on per-call mtime checks")
	} else {
		defer fw.Stop()
	}

	hub := wshub.NewHub()
	go hub.Run()

	r := router.New(engine, newStoreEventLogger(store, hub))

	advisoryClient := advisory.New(advisory.Config{
		Mode:        advisoryMode(cfg),
		EndpointURL: cfg.AdvisoryURL,
		Timeout:     cfg.AdvisoryTimeout,
	})

	var dispatcher actions.Dispatcher = actions.NewDryRunDispatcher()
	if cfg.EnableActuators {
		dispatcher = actions.NewSafetyGatedDispatcher(dispatcher)
	}

	executor := actions.NewExecutor(store, r, dispatcher, actions.NoopForegroundProbe)
	orchestrator := assist.New(advisoryClient, r, store)

	supervisor := watch.NewDefault(store)
	go func() {
		if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("watch-condition supervisor stopped unexpectedly")
		}
	}()

	server := httpapi.New(store, r, executor, orchestrator, supervisor, hub)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("stopped")
}

func advisoryMode(cfg *config.Config) advisory.Mode {
	if cfg.AdvisoryURL == "" {
		return advisory.ModeStub
	}
	return advisory.ModePhi3
}
