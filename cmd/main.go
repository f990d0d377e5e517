package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dm-relay/auth"
	"dm-relay/contract"
	"dm-relay/gateway"
	"dm-relay/graph"
	"dm-relay/moderation"
	"dm-relay/observability"
	"dm-relay/repositories"
	"dm-relay/runtime"
	"dm-relay/runtime/workers"
	"dm-relay/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

//go:embed censored.txt
var censoredFile embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. Returning
// an error instead of exiting keeps defers (database cleanup) running and
// the wiring testable.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	words, err := loadCensoredWords()
	if err != nil {
		return fmt.Errorf("censored words: %w", err)
	}
	replacement := []rune(config.ModerationReplacement)
	if len(replacement) != 1 {
		return fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			config.ModerationReplacement)
	}
	moderator, err := moderation.NewModerator(words, replacement[0])
	if err != nil {
		return fmt.Errorf("moderator build failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored words loaded", len(words)))

	// 4. Core wiring
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry(log, config.PresenceBufferSize)
	store := repositories.NewMessageStore(db, log)

	var socialGraph contract.SocialGraph
	var recorder services.InterestRecorder
	if config.GraphBaseURL != "" {
		socialGraph = graph.NewClient(config.GraphBaseURL, config.GraphTimeout)
	} else {
		static := graph.NewStatic()
		socialGraph = static
		recorder = static
		log.Warn("GRAPH_BASE_URL not set, using in-memory interest graph")
	}

	router := runtime.NewRouter(log, registry, store, moderator, metrics)
	acknowledger := runtime.NewAcknowledger(log, registry, store, metrics)
	service := services.NewMessagingService(log, router, acknowledger, recorder)
	verifier := auth.NewVerifier(config.AuthSecret)

	// 5. Supervised workers
	tracker := runtime.NewPresenceTracker(log, registry, socialGraph, metrics,
		registry.Transitions(), config.PresenceGrace)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(tracker)
	sup.Add(workers.NewReporterWorker(log, registry, metrics, config.ReportInterval))
	sup.Add(workers.NewStoreGCWorker(log, db, config.StoreGCInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sup.Run(ctx)

	// 6. Gateway HTTP server
	server := gateway.NewServer(log, gateway.ServerConfig{
		AllowedOrigins: config.AllowedOrigins,
		SessionBuffer:  config.SessionBufferSize,
		IdleTimeout:    config.IdleTimeout,
	}, verifier, registry, store, service, metrics)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Routes()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gateway", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func loadCensoredWords() ([]string, error) {
	raw, err := censoredFile.ReadFile("censored.txt")
	if err != nil {
		return nil, err
	}
	var words []string
	for _, line := range strings.Split(string(raw), "\n") {
		if word := strings.TrimSpace(line); word != "" {
			words = append(words, word)
		}
	}
	return words, nil
}
