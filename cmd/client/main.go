package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientapi "github.com/iudanet/gymsync/internal/client/api"
	"github.com/iudanet/gymsync/internal/client/cli"
	"github.com/iudanet/gymsync/internal/client/outbox"
	"github.com/iudanet/gymsync/internal/client/processor"
	"github.com/iudanet/gymsync/internal/client/resolver"
	"github.com/iudanet/gymsync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/gymsync/internal/client/sync"
	"github.com/iudanet/gymsync/internal/server/auth"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const deviceTokenTTL = 365 * 24 * time.Hour

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "gymsync.db", "Path to local database")
	secret := flag.String("secret", "", "Shared auth secret used to mint the device token")
	deviceID := flag.String("device", "", "Device identifier")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	if *secret == "" || *deviceID == "" {
		fmt.Fprintln(os.Stderr, "Error: -secret and -device are required")
		os.Exit(1)
	}

	logger := newLogger(*logLevel)

	if err := run(logger, *serverURL, *dbPath, *secret, *deviceID, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, serverURL, dbPath, secret, deviceID string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := auth.IssueDeviceToken(auth.Config{
		Secret:   []byte(secret),
		TokenTTL: deviceTokenTTL,
	}, deviceID)
	if err != nil {
		return fmt.Errorf("failed to mint device token: %w", err)
	}

	store, err := boltdb.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open local database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close local database", "error", err)
		}
	}()

	// Локальные мутации попадают в outbox через хук хранилища
	capture := outbox.NewCapture(store, logger)
	store.SetChangeHook(capture.Hook())

	apiClient := clientapi.NewClient(serverURL, token)
	res := resolver.New(logger)
	processors := processor.NewRegistry(store, res, logger)
	syncService := clientsync.NewService(apiClient, processors, res, store, store, logger)
	dispatcher := outbox.NewDispatcher(store, apiClient, logger)

	app := &cli.App{
		Sync:       syncService,
		Dispatcher: dispatcher,
		Store:      store,
	}

	switch args[0] {
	case "seed":
		return cli.RunSeed(ctx, app)
	case "delta":
		return cli.RunDelta(ctx, app)
	case "push":
		return cli.RunPush(ctx, app)
	case "status":
		return cli.RunStatus(ctx, app)
	case "edit-descriptor":
		return cli.RunEditDescriptor(ctx, app, args[1:])
	case "edit-exercise":
		return cli.RunEditExercise(ctx, app, args[1:])
	case "delete-exercise":
		return cli.RunDeleteExercise(ctx, app, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		cli.PrintUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printVersion() {
	fmt.Printf("Gymsync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
