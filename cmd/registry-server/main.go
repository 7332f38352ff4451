package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/be-registry/cmd/flags"
	"github.com/ruteri/be-registry/entitystore"
	"github.com/ruteri/be-registry/httpserver"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/ruteri/be-registry/logic"
	"github.com/ruteri/be-registry/metrics"
	"github.com/ruteri/be-registry/registry"
	"github.com/ruteri/be-registry/storage"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}

var flagStorage = &cli.StringSliceFlag{
	Name:    "storage",
	EnvVars: []string{"STORAGE_URIS"},
	Usage:   "snapshot backend URI (file, sqlite, postgres, s3, vault, ipfs); repeat to replicate. Without any, entities are kept in memory only",
}

var flagRequireDeregistration = &cli.BoolFlag{
	Name:    "require-deregistration",
	Value:   false,
	EnvVars: []string{"REQUIRE_DEREGISTRATION"},
	Usage:   "reject deletion of entities that were not deregistered first",
}

const envFileVar = "REGISTRY_ENV_FILE"

func main() {
	envFile := os.Getenv(envFileVar)
	if envFile == "" {
		envFile = ".env"
	}
	if err := flags.LoadDotEnv(envFile); err != nil {
		log.Fatalf("could not load %s: %v", envFile, err)
	}

	app := &cli.App{
		Name:  "registry-server",
		Usage: "Serve the business entity registry API",
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagStorage,
			flagRequireDeregistration,
			flags.RegistryAddrFlag,
			flags.LogServiceFlagFn("be-registry"),
		}, flags.CommonFlags...),
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	registryAddr, err := flags.ParseAddress("registry", cCtx.String(flags.RegistryAddrFlag.Name))
	if err != nil {
		logger.Error("Invalid registry address", "err", err)
		return err
	}

	store, err := openStore(ctx, cCtx.StringSlice(flagStorage.Name), logger)
	if err != nil {
		logger.Error("Failed to open entity store", "err", err)
		return err
	}

	stats := store.Stats()
	logger.Info("Entity store ready",
		"live", stats.Live,
		"tombstoned", stats.Tombstoned,
		"nonce", stats.Nonce,
		"generation", stats.Generation)

	m := metrics.NewMetrics()
	regLogic := logic.New(logic.WithRequireDeregistration(cCtx.Bool(flagRequireDeregistration.Name)))

	reg, err := registry.New(registry.Config{
		Address: registryAddr,
		Store:   store,
		Logic:   regLogic,
		Metrics: m,
		Log:     logger,
	})
	if err != nil {
		logger.Error("Failed to create registry", "err", err)
		return err
	}

	logger.Info("Registry deployed",
		"registry", registryAddr.Hex(),
		"logicVersion", regLogic.Version(),
		"requireDeregistration", cCtx.Bool(flagRequireDeregistration.Name))

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))
	server, err := httpserver.New(cfg, httpserver.NewHandler(reg, logger), m)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func openStore(ctx context.Context, uris []string, logger *slog.Logger) (*entitystore.Store, error) {
	if len(uris) == 0 {
		logger.Warn("No storage configured, entities will not survive a restart")
		return entitystore.NewMemory(), nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	factory := storage.NewStorageBackendFactory(logger)

	var backend interfaces.StorageBackend
	var err error
	if len(locations) == 1 {
		backend, err = factory.StorageBackendFor(ctx, locations[0])
	} else {
		backend, err = factory.CreateMultiBackend(ctx, locations)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create storage backend: %w", err)
	}

	logger.Info("Using snapshot storage", "backend", backend.Name())
	return entitystore.New(ctx, backend, logger)
}
